package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"
	"rag-document-platform/services"
)

const TaskIngestDocuments = "documents:ingest"

type IngestPayload struct {
	JobID string `json:"job_id"`
}

// NewIngestTask creates the asynq task for a stored ingest job.
func NewIngestTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocuments,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor executes queued ingest jobs against the shared pipeline.
type TaskProcessor struct {
	jobs      *mongo.Collection
	ingestion *services.IngestionService
}

func NewTaskProcessor(jobs *mongo.Collection, ingestion *services.IngestionService) *TaskProcessor {
	return &TaskProcessor{jobs: jobs, ingestion: ingestion}
}

// ProcessIngest loads the job record, runs the ingestion pipeline over the
// stored uploads and records the outcome. Stored files are removed once the
// job finishes; files of failed attempts stay for asynq's retries and are
// pruned later by the cleanup job.
func (tp *TaskProcessor) ProcessIngest(ctx context.Context, task *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	var job models.IngestJob
	if err := tp.jobs.FindOne(ctx, bson.M{"job_id": payload.JobID}).Decode(&job); err != nil {
		return fmt.Errorf("ingest job %s not found: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}

	logger.Info("Processing ingest job", "job_id", job.JobID, "files", len(job.Filenames))
	tp.setStatus(ctx, job.JobID, bson.M{"status": models.JobStatusProcessing})

	inputs := services.FileInputsFromPaths(job.StoredPaths, job.Filenames)
	result, err := tp.ingestion.ProcessAndStoreFiles(ctx, inputs)
	if err != nil {
		tp.setStatus(ctx, job.JobID, bson.M{
			"status":        models.JobStatusFailed,
			"error_message": err.Error(),
		})
		return fmt.Errorf("ingest job %s failed: %w", job.JobID, err)
	}

	now := time.Now()
	tp.setStatus(ctx, job.JobID, bson.M{
		"status":             models.JobStatusCompleted,
		"total_chunks_added": result.TotalChunksAdded,
		"files_with_errors":  result.FilesWithErrors,
		"completed_at":       now,
	})

	for _, path := range job.StoredPaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove stored upload", "path", path, "error", err)
		}
	}

	logger.Info("Ingest job completed", "job_id", job.JobID, "chunks_added", result.TotalChunksAdded, "files_with_errors", len(result.FilesWithErrors))
	return nil
}

func (tp *TaskProcessor) setStatus(ctx context.Context, jobID string, fields bson.M) {
	if _, err := tp.jobs.UpdateOne(ctx, bson.M{"job_id": jobID}, bson.M{"$set": fields}); err != nil {
		logger.Error("Failed to update ingest job status", "job_id", jobID, "error", err)
	}
}
