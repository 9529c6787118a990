package models

import "time"

// Metadata keys stamped onto every chunk during ingestion. Deletion and
// source attribution both key off MetaOriginalFilename, so it must be set
// before a chunk ever reaches the store.
const (
	MetaOriginalFilename   = "original_filename"
	MetaIngestionTimestamp = "ingestion_timestamp_utc"
	MetaPage               = "page"
)

// Chunk is a contiguous span of extracted document text, the unit of
// storage and retrieval. Chunks are immutable once written; removal happens
// by metadata predicate, never by in-place mutation.
type Chunk struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Embedding []float32              `json:"embedding,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// OriginalFilename returns the owning document's name, or "" if the chunk
// was never stamped.
func (c Chunk) OriginalFilename() string {
	if v, ok := c.Metadata[MetaOriginalFilename].(string); ok {
		return v
	}
	return ""
}

// StampIngestion tags the chunk with its owning document and ingestion time.
// Existing parser metadata (page numbers etc.) is preserved.
func (c *Chunk) StampIngestion(filename string, at time.Time) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]interface{})
	}
	c.Metadata[MetaOriginalFilename] = filename
	c.Metadata[MetaIngestionTimestamp] = at.UTC().Format(time.RFC3339)
}

// Source is a cited snippet attached to a query answer.
type Source struct {
	Filename string `json:"filename"`
	Snippet  string `json:"page_content_snippet"`
}

// QueryResult is the terminal output of the answer workflow. Failed is set
// when the workflow collapsed into the sentinel failure response so the API
// layer can map it to a 5xx without parsing the answer text. Rewritten is
// set when the rewrite fallback produced the answer; both flags stay off
// the wire.
type QueryResult struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Failed    bool     `json:"-"`
	Rewritten bool     `json:"-"`
}

// IngestResult reports the per-batch outcome of an ingestion call.
type IngestResult struct {
	TotalChunksAdded int      `json:"total_chunks_added"`
	FilesWithErrors  []string `json:"files_with_errors"`
}
