package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-document-platform/internal/vectorstore"
	"rag-document-platform/models"
)

const testCollectionID = "c0ffee00-0000-0000-0000-000000000000"

// fakeChroma serves the handful of collection endpoints the client uses
// and records the last request body per operation.
type fakeChroma struct {
	mux    *http.ServeMux
	bodies map[string]map[string]any
	status map[string]int
	reply  map[string]any
}

func newFakeChroma() *fakeChroma {
	f := &fakeChroma{
		mux:    http.NewServeMux(),
		bodies: map[string]map[string]any{},
		status: map[string]int{},
		reply:  map[string]any{},
	}

	f.mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		f.capture("collections", r)
		json.NewEncoder(w).Encode(map[string]any{"id": testCollectionID, "name": "test"})
	})
	for _, op := range []string{"add", "upsert", "get", "delete", "query"} {
		op := op
		f.mux.HandleFunc("/api/v1/collections/"+testCollectionID+"/"+op, func(w http.ResponseWriter, r *http.Request) {
			f.capture(op, r)
			if code, ok := f.status[op]; ok {
				http.Error(w, "backend exploded", code)
				return
			}
			if reply, ok := f.reply[op]; ok {
				json.NewEncoder(w).Encode(reply)
				return
			}
			w.Write([]byte("{}"))
		})
	}
	return f
}

func (f *fakeChroma) capture(op string, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.bodies[op] = body
}

func newTestStore(t *testing.T) (*Store, *fakeChroma) {
	t.Helper()
	fake := newFakeChroma()
	srv := httptest.NewServer(fake.mux)
	t.Cleanup(srv.Close)

	store, err := NewStore(context.Background(), Config{URL: srv.URL, Collection: "test"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, fake
}

func TestNewStoreResolvesCollection(t *testing.T) {
	store, fake := newTestStore(t)

	if store.collectionID != testCollectionID {
		t.Errorf("collectionID = %q", store.collectionID)
	}
	body := fake.bodies["collections"]
	if body["name"] != "test" {
		t.Errorf("collection name = %v", body["name"])
	}
	if body["get_or_create"] != true {
		t.Error("get_or_create not requested")
	}
}

func TestNewStoreRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	if _, err := NewStore(context.Background(), Config{URL: srv.URL, Collection: "test"}); err == nil {
		t.Fatal("expected error for empty collection id")
	}
}

func TestAddAssignsIDs(t *testing.T) {
	store, fake := newTestStore(t)

	chunks := []models.Chunk{
		{Content: "first", Embedding: []float32{0.1}, Metadata: map[string]interface{}{models.MetaOriginalFilename: "a.txt"}},
		{ID: "fixed-id", Content: "second", Embedding: []float32{0.2}, Metadata: map[string]interface{}{}},
	}
	if err := store.Add(context.Background(), chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}

	body := fake.bodies["add"]
	ids, _ := body["ids"].([]any)
	if len(ids) != 2 {
		t.Fatalf("ids = %v", body["ids"])
	}
	if ids[0] == "" {
		t.Error("missing generated id for first chunk")
	}
	if ids[1] != "fixed-id" {
		t.Errorf("ids[1] = %v, want the caller-provided id", ids[1])
	}
	if docs, _ := body["documents"].([]any); len(docs) != 2 || docs[0] != "first" {
		t.Errorf("documents = %v", body["documents"])
	}
}

func TestAddEmptyIsNoop(t *testing.T) {
	store, fake := newTestStore(t)

	if err := store.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add(nil): %v", err)
	}
	if _, called := fake.bodies["add"]; called {
		t.Error("empty Add still hit the server")
	}
}

func TestAddServerFailure(t *testing.T) {
	store, fake := newTestStore(t)
	fake.status["add"] = http.StatusInternalServerError

	err := store.Add(context.Background(), []models.Chunk{{Content: "x"}})
	var we *vectorstore.WriteError
	if !errors.As(err, &we) {
		t.Fatalf("error = %v, want *vectorstore.WriteError", err)
	}
	if we.Op != "add" {
		t.Errorf("Op = %q", we.Op)
	}
}

func TestDeleteByDocumentFilters(t *testing.T) {
	store, fake := newTestStore(t)

	if err := store.DeleteByDocument(context.Background(), "a.txt"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	where, _ := fake.bodies["delete"]["where"].(map[string]any)
	if where[models.MetaOriginalFilename] != "a.txt" {
		t.Errorf("where = %v", fake.bodies["delete"]["where"])
	}
}

func TestGetByIDAbsent(t *testing.T) {
	store, _ := newTestStore(t)

	rec, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil for an absent id", rec)
	}
}

func TestGetByIDFound(t *testing.T) {
	store, fake := newTestStore(t)
	fake.reply["get"] = map[string]any{
		"ids":       []string{"__DOCUMENT_INDEX__"},
		"documents": []string{"This is an index document. Do not delete."},
		"metadatas": []map[string]any{{"filenames": "a.txt|b.pdf"}},
	}

	rec, err := store.GetByID(context.Background(), "__DOCUMENT_INDEX__")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec == nil {
		t.Fatal("rec = nil")
	}
	if rec.ID != "__DOCUMENT_INDEX__" {
		t.Errorf("ID = %q", rec.ID)
	}
	if rec.Metadata["filenames"] != "a.txt|b.pdf" {
		t.Errorf("metadata = %v", rec.Metadata)
	}
}

func TestUpsertByID(t *testing.T) {
	store, fake := newTestStore(t)

	err := store.UpsertByID(context.Background(), "sentinel", "content", map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("UpsertByID: %v", err)
	}
	body := fake.bodies["upsert"]
	if ids, _ := body["ids"].([]any); len(ids) != 1 || ids[0] != "sentinel" {
		t.Errorf("ids = %v", body["ids"])
	}
	if docs, _ := body["documents"].([]any); len(docs) != 1 || docs[0] != "content" {
		t.Errorf("documents = %v", body["documents"])
	}
}

func TestQuery(t *testing.T) {
	store, fake := newTestStore(t)
	fake.reply["query"] = map[string]any{
		"ids":       [][]string{{"id-1", "id-2"}},
		"documents": [][]string{{"chunk one", "chunk two"}},
		"metadatas": [][]map[string]any{{
			{models.MetaOriginalFilename: "a.txt"},
			{models.MetaOriginalFilename: "b.pdf"},
		}},
	}

	chunks, err := store.Query(context.Background(), []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].ID != "id-1" || chunks[0].Content != "chunk one" {
		t.Errorf("chunks[0] = %+v", chunks[0])
	}
	if chunks[1].OriginalFilename() != "b.pdf" {
		t.Errorf("chunks[1] filename = %q", chunks[1].OriginalFilename())
	}

	body := fake.bodies["query"]
	if n, _ := body["n_results"].(float64); n != 2 {
		t.Errorf("n_results = %v", body["n_results"])
	}
}

func TestQueryServerFailure(t *testing.T) {
	store, fake := newTestStore(t)
	fake.status["query"] = http.StatusBadRequest

	_, err := store.Query(context.Background(), []float32{0.1}, 4)
	var re *vectorstore.ReadError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *vectorstore.ReadError", err)
	}
}
