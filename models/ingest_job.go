package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IngestJob tracks one asynchronous ingestion request through the worker.
type IngestJob struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID            string             `bson:"job_id" json:"job_id"`
	Filenames        []string           `bson:"filenames" json:"filenames"`
	StoredPaths      []string           `bson:"stored_paths" json:"-"`
	Status           string             `bson:"status" json:"status"`
	TotalChunksAdded int                `bson:"total_chunks_added" json:"total_chunks_added"`
	FilesWithErrors  []string           `bson:"files_with_errors,omitempty" json:"files_with_errors,omitempty"`
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	CompletedAt      *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Ingest job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)
