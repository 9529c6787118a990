package index

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"rag-document-platform/internal/vectorstore"
)

// fakeSentinelStore keeps the sentinel record in memory behind a mutex so
// concurrent tests exercise the real interleavings.
type fakeSentinelStore struct {
	mu       sync.Mutex
	record   *vectorstore.Record
	getErr   error
	putErr   error
	putCalls int
}

func (f *fakeSentinelStore) GetByID(ctx context.Context, id string) (*vectorstore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.record == nil || f.record.ID != id {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored record.
	metadata := make(map[string]interface{}, len(f.record.Metadata))
	for k, v := range f.record.Metadata {
		metadata[k] = v
	}
	return &vectorstore.Record{ID: f.record.ID, Content: f.record.Content, Metadata: metadata}, nil
}

func (f *fakeSentinelStore) UpsertByID(ctx context.Context, id, content string, metadata map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.putCalls++
	f.record = &vectorstore.Record{ID: id, Content: content, Metadata: metadata}
	return nil
}

func (f *fakeSentinelStore) serialized() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record == nil {
		return ""
	}
	s, _ := f.record.Metadata[filenamesKey].(string)
	return s
}

func TestListNamesEmptyStore(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")

	names, err := di.ListNames(context.Background())
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}

func TestAddNamesCreatesSentinel(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")

	if err := di.AddNames(context.Background(), []string{"b.pdf", "a.txt"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}

	if store.record == nil {
		t.Fatal("sentinel record was not written")
	}
	if store.record.ID != DefaultSentinelID {
		t.Errorf("sentinel id = %q, want %q", store.record.ID, DefaultSentinelID)
	}
	if store.record.Content != sentinelContent {
		t.Errorf("sentinel content = %q, want %q", store.record.Content, sentinelContent)
	}

	names, err := di.ListNames(context.Background())
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	want := []string{"a.txt", "b.pdf"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v (sorted)", names, want)
	}
}

func TestAddNamesSkipsExistingAndDuplicates(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")
	ctx := context.Background()

	if err := di.AddNames(ctx, []string{"a.txt"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}
	if err := di.AddNames(ctx, []string{"a.txt", "b.pdf", "b.pdf"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}

	names, err := di.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	want := []string{"a.txt", "b.pdf"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestAddNamesNoopSkipsWrite(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")
	ctx := context.Background()

	if err := di.AddNames(ctx, []string{"a.txt"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}
	writesBefore := store.putCalls

	if err := di.AddNames(ctx, []string{"a.txt"}); err != nil {
		t.Fatalf("AddNames noop: %v", err)
	}
	if store.putCalls != writesBefore {
		t.Errorf("no-op AddNames performed a write, putCalls %d -> %d", writesBefore, store.putCalls)
	}
}

func TestRemoveNameIdempotent(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")
	ctx := context.Background()

	if err := di.AddNames(ctx, []string{"a.txt", "b.pdf"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}

	if err := di.RemoveName(ctx, "a.txt"); err != nil {
		t.Fatalf("RemoveName: %v", err)
	}
	// Second removal of the same name succeeds without a write.
	writesBefore := store.putCalls
	if err := di.RemoveName(ctx, "a.txt"); err != nil {
		t.Fatalf("RemoveName repeat: %v", err)
	}
	if store.putCalls != writesBefore {
		t.Error("repeated RemoveName performed a write")
	}

	names, err := di.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"b.pdf"}) {
		t.Errorf("names = %v, want [b.pdf]", names)
	}
}

func TestSerializationFormat(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")
	ctx := context.Background()

	if err := di.AddNames(ctx, []string{"a.txt", "b.pdf", "c.html"}); err != nil {
		t.Fatalf("AddNames: %v", err)
	}

	serialized := store.serialized()
	if strings.Count(serialized, nameSeparator) != 2 {
		t.Errorf("serialized = %q, want two %q separators", serialized, nameSeparator)
	}
	for _, name := range []string{"a.txt", "b.pdf", "c.html"} {
		if !strings.Contains(serialized, name) {
			t.Errorf("serialized %q missing %q", serialized, name)
		}
	}
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	boom := errors.New("connection refused")

	store := &fakeSentinelStore{getErr: boom}
	di := NewDocumentIndex(store, "")
	if _, err := di.ListNames(context.Background()); err == nil {
		t.Fatal("expected error from failing read")
	} else {
		var ue *UnavailableError
		if !errors.As(err, &ue) {
			t.Errorf("error type = %T, want *UnavailableError", err)
		}
		if !errors.Is(err, boom) {
			t.Error("UnavailableError does not unwrap to the cause")
		}
	}

	store = &fakeSentinelStore{putErr: boom}
	di = NewDocumentIndex(store, "")
	if err := di.AddNames(context.Background(), []string{"a.txt"}); err == nil {
		t.Fatal("expected error from failing write")
	} else {
		var ue *UnavailableError
		if !errors.As(err, &ue) {
			t.Errorf("error type = %T, want *UnavailableError", err)
		}
	}
}

func TestConcurrentAddNamesUnion(t *testing.T) {
	store := &fakeSentinelStore{}
	di := NewDocumentIndex(store, "")
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := di.AddNames(ctx, []string{fmt.Sprintf("doc-%02d.pdf", i)}); err != nil {
				t.Errorf("AddNames(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	names, err := di.ListNames(ctx)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if len(names) != writers {
		t.Fatalf("index holds %d names after %d concurrent adds: %v", len(names), writers, names)
	}
	for i := 0; i < writers; i++ {
		want := fmt.Sprintf("doc-%02d.pdf", i)
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}
