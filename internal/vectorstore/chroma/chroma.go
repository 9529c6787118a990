package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rag-document-platform/internal/vectorstore"
	"rag-document-platform/models"

	"github.com/google/uuid"
)

// Store is a minimal REST client to a ChromaDB server. The collection is
// created on first use if missing.
type Store struct {
	url          string
	collection   string
	collectionID string
	client       *http.Client
}

type Config struct {
	URL        string
	Collection string
	Timeout    time.Duration
}

// NewStore connects to Chroma and resolves (or creates) the collection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	s := &Store{
		url:        cfg.URL,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}

	body := map[string]any{
		"name":          cfg.Collection,
		"get_or_create": true,
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/api/v1/collections", s.url), body, &resp); err != nil {
		return nil, fmt.Errorf("failed to resolve collection %q: %w", cfg.Collection, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("chroma returned no id for collection %q", cfg.Collection)
	}
	s.collectionID = resp.ID

	return s, nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	metadatas := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		ids[i] = c.ID
		documents[i] = c.Content
		embeddings[i] = c.Embedding
		metadatas[i] = c.Metadata
	}

	body := map[string]any{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
		"metadatas":  metadatas,
	}
	if err := s.postJSON(ctx, s.collectionURL("add"), body, nil); err != nil {
		return &vectorstore.WriteError{Op: "add", Err: err}
	}
	return nil
}

func (s *Store) DeleteByDocument(ctx context.Context, name string) error {
	body := map[string]any{
		"where": map[string]any{models.MetaOriginalFilename: name},
	}
	if err := s.postJSON(ctx, s.collectionURL("delete"), body, nil); err != nil {
		return &vectorstore.WriteError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*vectorstore.Record, error) {
	body := map[string]any{
		"ids":     []string{id},
		"include": []string{"documents", "metadatas"},
	}
	var resp struct {
		IDs       []string                 `json:"ids"`
		Documents []string                 `json:"documents"`
		Metadatas []map[string]interface{} `json:"metadatas"`
	}
	if err := s.postJSON(ctx, s.collectionURL("get"), body, &resp); err != nil {
		return nil, &vectorstore.ReadError{Op: "get", Err: err}
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	rec := &vectorstore.Record{ID: resp.IDs[0]}
	if len(resp.Documents) > 0 {
		rec.Content = resp.Documents[0]
	}
	if len(resp.Metadatas) > 0 {
		rec.Metadata = resp.Metadatas[0]
	}
	return rec, nil
}

func (s *Store) UpsertByID(ctx context.Context, id, content string, metadata map[string]interface{}) error {
	body := map[string]any{
		"ids":       []string{id},
		"documents": []string{content},
		"metadatas": []map[string]interface{}{metadata},
	}
	if err := s.postJSON(ctx, s.collectionURL("upsert"), body, nil); err != nil {
		return &vectorstore.WriteError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]models.Chunk, error) {
	if topK <= 0 {
		topK = 4
	}
	body := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas"},
	}
	var resp struct {
		IDs       [][]string                 `json:"ids"`
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
	}
	if err := s.postJSON(ctx, s.collectionURL("query"), body, &resp); err != nil {
		return nil, &vectorstore.ReadError{Op: "query", Err: err}
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]models.Chunk, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		chunk := models.Chunk{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			chunk.Content = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			chunk.Metadata = resp.Metadatas[0][i]
		}
		results = append(results, chunk)
	}
	return results, nil
}

func (s *Store) collectionURL(op string) string {
	return fmt.Sprintf("%s/api/v1/collections/%s/%s", s.url, s.collectionID, op)
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma POST %s failed: %s: %s", url, resp.Status, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("chroma response decode failed: %w", err)
		}
	}
	return nil
}
