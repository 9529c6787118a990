package vectorstore

import (
	"context"
	"fmt"

	"rag-document-platform/models"
)

// Record is a raw store entry addressed by id. Used for the document index
// sentinel; ordinary chunks are never read back individually.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// Store wraps the vector store's add/delete/get/upsert primitives behind a
// stable interface. All operations may block on network I/O.
type Store interface {
	// Add writes chunks to the store. No partial-success reporting: a
	// failure partway surfaces as a WriteError and the caller owns
	// batching and retry.
	Add(ctx context.Context, chunks []models.Chunk) error

	// DeleteByDocument removes every chunk whose original_filename metadata
	// matches name. Idempotent: a name with no matching chunks succeeds.
	DeleteByDocument(ctx context.Context, name string) error

	// GetByID returns the record with the given id, or nil if absent.
	GetByID(ctx context.Context, id string) (*Record, error)

	// UpsertByID writes the record with full-replace semantics (not merge).
	UpsertByID(ctx context.Context, id, content string, metadata map[string]interface{}) error

	// Query returns up to topK chunks ranked by similarity to embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]models.Chunk, error)
}

// WriteError wraps a failed store write.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("vector store write failed (%s): %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a failed store read.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("vector store read failed (%s): %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
