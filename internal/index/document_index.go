package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"rag-document-platform/internal/logger"
	"rag-document-platform/internal/vectorstore"
)

// Serialization of the sentinel record. The "|" join and the metadata key
// must stay bit-for-bit stable: existing deployments read names back from
// this exact format.
const (
	DefaultSentinelID = "__DOCUMENT_INDEX__"

	filenamesKey    = "filenames"
	nameSeparator   = "|"
	sentinelContent = "This is an index document. Do not delete."
)

// SentinelStore is the slice of the vector store the index needs.
type SentinelStore interface {
	GetByID(ctx context.Context, id string) (*vectorstore.Record, error)
	UpsertByID(ctx context.Context, id, content string, metadata map[string]interface{}) error
}

// UnavailableError reports that the index record could not be read or
// written. Not retried internally; callers surface it as a server error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("document index unavailable (%s): %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// DocumentIndex is the sole source of truth for which documents are
// ingested. The backing store has no atomic set-update primitive, so every
// mutation is a read-modify-write of a single sentinel record serialized by
// a process-wide lock. Multi-instance deployments need an external lock to
// keep this sound; that is a known scaling limit.
type DocumentIndex struct {
	store      SentinelStore
	sentinelID string
	mu         sync.Mutex
}

func NewDocumentIndex(store SentinelStore, sentinelID string) *DocumentIndex {
	if sentinelID == "" {
		sentinelID = DefaultSentinelID
	}
	return &DocumentIndex{store: store, sentinelID: sentinelID}
}

// ListNames returns all known document names, lexicographically sorted.
// An absent sentinel means the store is empty, not an error. Reads are not
// excluded by the index lock and may observe a state mid-update from
// another request; the re-read inside AddNames/RemoveName is what keeps the
// final write correct.
func (di *DocumentIndex) ListNames(ctx context.Context) ([]string, error) {
	rec, err := di.store.GetByID(ctx, di.sentinelID)
	if err != nil {
		return nil, &UnavailableError{Op: "read", Err: err}
	}
	if rec == nil {
		logger.Debug("Index sentinel not yet created, store is likely empty", "sentinel_id", di.sentinelID)
		return []string{}, nil
	}

	serialized, _ := rec.Metadata[filenamesKey].(string)
	if serialized == "" {
		return []string{}, nil
	}

	names := strings.Split(serialized, nameSeparator)
	sort.Strings(names)
	return names, nil
}

// AddNames registers newNames in the index, skipping any already present.
// No-op (no write) when every name is already known.
func (di *DocumentIndex) AddNames(ctx context.Context, newNames []string) error {
	di.mu.Lock()
	defer di.mu.Unlock()

	// Fresh read inside the lock, never a cached value.
	current, err := di.ListNames(ctx)
	if err != nil {
		return err
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, name := range current {
		currentSet[name] = struct{}{}
	}

	var toAdd []string
	for _, name := range newNames {
		if _, exists := currentSet[name]; exists {
			continue
		}
		currentSet[name] = struct{}{}
		toAdd = append(toAdd, name)
	}

	if len(toAdd) == 0 {
		logger.Info("No new unique filenames to add to the index")
		return nil
	}

	if err := di.writeNames(ctx, append(current, toAdd...)); err != nil {
		return err
	}
	logger.Info("Document index updated", "added", len(toAdd))
	return nil
}

// RemoveName removes name from the index. Removing a name that is already
// gone is treated as success: a concurrent process may have removed it.
func (di *DocumentIndex) RemoveName(ctx context.Context, name string) error {
	di.mu.Lock()
	defer di.mu.Unlock()

	current, err := di.ListNames(ctx)
	if err != nil {
		return err
	}

	remaining := current[:0:0]
	for _, n := range current {
		if n != name {
			remaining = append(remaining, n)
		}
	}

	if len(remaining) == len(current) {
		logger.Warn("Name already absent from index, possibly removed concurrently", "filename", name)
		return nil
	}

	if err := di.writeNames(ctx, remaining); err != nil {
		return err
	}
	logger.Info("Document index updated", "removed", name)
	return nil
}

func (di *DocumentIndex) writeNames(ctx context.Context, names []string) error {
	metadata := map[string]interface{}{
		filenamesKey: strings.Join(names, nameSeparator),
	}
	if err := di.store.UpsertByID(ctx, di.sentinelID, sentinelContent, metadata); err != nil {
		return &UnavailableError{Op: "write", Err: err}
	}
	return nil
}
