package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"rag-document-platform/internal/logger"
	"rag-document-platform/models"
)

// NotFoundError reports a delete for a document name the index does not
// know. A user-facing condition, not a system fault.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document %q not found", e.Name)
}

// ChunkWriter is the slice of the vector store ingestion needs.
type ChunkWriter interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	DeleteByDocument(ctx context.Context, name string) error
}

// DocumentIndexer maintains the authoritative set of ingested names.
type DocumentIndexer interface {
	ListNames(ctx context.Context) ([]string, error)
	AddNames(ctx context.Context, names []string) error
	RemoveName(ctx context.Context, name string) error
}

// TextEmbedder computes embedding vectors for chunk contents.
type TextEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// FileInput abstracts an uploaded file so the same pipeline serves both the
// synchronous multipart path and the worker's stored-file path.
type FileInput struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// FileInputsFromMultipart adapts multipart uploads to FileInput.
func FileInputsFromMultipart(files []*multipart.FileHeader) []FileInput {
	inputs := make([]FileInput, len(files))
	for i, fh := range files {
		fh := fh
		inputs[i] = FileInput{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	return inputs
}

// FileInputsFromPaths adapts files already saved to disk. names[i] is the
// original upload name for paths[i].
func FileInputsFromPaths(paths, names []string) []FileInput {
	inputs := make([]FileInput, len(paths))
	for i, path := range paths {
		path := path
		inputs[i] = FileInput{
			Filename: names[i],
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		}
	}
	return inputs
}

// IngestionService converts uploaded files into metadata-tagged chunks,
// persists them in batches and registers the filenames in the document
// index.
type IngestionService struct {
	store     ChunkWriter
	index     DocumentIndexer
	embedder  TextEmbedder
	extractor *Extractor
	chunker   *ChunkingService
	batchSize int
}

func NewIngestionService(store ChunkWriter, index DocumentIndexer, embedder TextEmbedder, extractor *Extractor, chunker *ChunkingService, batchSize int) *IngestionService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &IngestionService{
		store:     store,
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		batchSize: batchSize,
	}
}

// ProcessAndStoreFiles runs the full ingestion pipeline. Per-file failures
// are collected in the result and never abort the batch; store-write and
// index-update failures abort the remaining work and are returned. The
// index is updated exactly once, after every batch write has succeeded.
func (is *IngestionService) ProcessAndStoreFiles(ctx context.Context, files []FileInput) (models.IngestResult, error) {
	var allChunks []models.Chunk
	errorFiles := []string{}
	var processedFilenames []string

	for _, file := range files {
		chunks, err := is.processFile(ctx, file)
		if err != nil {
			logger.Error("Error during file processing", "filename", file.Filename, "error", err)
			errorFiles = append(errorFiles, file.Filename)
			continue
		}
		allChunks = append(allChunks, chunks...)
		processedFilenames = append(processedFilenames, file.Filename)
	}

	if len(allChunks) == 0 {
		logger.Warn("No chunks produced, skipping store and index update")
		return models.IngestResult{TotalChunksAdded: 0, FilesWithErrors: errorFiles}, nil
	}

	logger.Info("Adding chunks to the vector store", "chunks", len(allChunks), "batch_size", is.batchSize)
	totalBatches := (len(allChunks) + is.batchSize - 1) / is.batchSize
	for i := 0; i < len(allChunks); i += is.batchSize {
		end := i + is.batchSize
		if end > len(allChunks) {
			end = len(allChunks)
		}
		batch := allChunks[i:end]
		logger.Debug("Writing batch", "batch", i/is.batchSize+1, "total_batches", totalBatches, "chunks", len(batch))

		// Fail fast: a batch failure leaves the remaining batches
		// unwritten and the index untouched.
		if err := is.writeBatch(ctx, batch); err != nil {
			return models.IngestResult{FilesWithErrors: errorFiles}, err
		}
	}

	if err := is.index.AddNames(ctx, processedFilenames); err != nil {
		return models.IngestResult{FilesWithErrors: errorFiles}, err
	}

	logger.Info("Ingestion completed", "chunks_added", len(allChunks), "files_processed", len(processedFilenames), "files_with_errors", len(errorFiles))
	return models.IngestResult{TotalChunksAdded: len(allChunks), FilesWithErrors: errorFiles}, nil
}

// processFile materializes one upload to a temp file, extracts and chunks
// its text and stamps every chunk with the owning document's name. The temp
// file is removed on every exit path.
func (is *IngestionService) processFile(ctx context.Context, file FileInput) ([]models.Chunk, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "ingest-*"+filepath.Ext(file.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	logger.Info("Processing file", "filename", file.Filename)

	sections, err := is.extractor.Extract(tmpPath, file.Filename)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var chunks []models.Chunk
	for _, section := range sections {
		for _, span := range is.chunker.ChunkText(section.Text) {
			metadata := make(map[string]interface{}, len(section.Metadata)+2)
			for k, v := range section.Metadata {
				metadata[k] = v
			}
			chunk := models.Chunk{Content: span, Metadata: metadata}
			chunk.StampIngestion(file.Filename, now)
			chunks = append(chunks, chunk)
		}
	}

	logger.Info("File divided into chunks", "filename", file.Filename, "chunks", len(chunks))
	return chunks, nil
}

func (is *IngestionService) writeBatch(ctx context.Context, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}

	vectors, err := is.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	for i := range batch {
		batch[i].Embedding = vectors[i]
	}

	return is.store.Add(ctx, batch)
}

// DeleteDocument removes every chunk belonging to name and unregisters it
// from the index. Deleting an unknown name is a NotFoundError, and the
// index is left unchanged.
func (is *IngestionService) DeleteDocument(ctx context.Context, name string) error {
	current, err := is.index.ListNames(ctx)
	if err != nil {
		return err
	}

	known := false
	for _, n := range current {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		logger.Warn("Document not found in index, no deletion performed", "filename", name)
		return &NotFoundError{Name: name}
	}

	if err := is.store.DeleteByDocument(ctx, name); err != nil {
		return err
	}
	logger.Info("Deleted all chunks for document", "filename", name)

	return is.index.RemoveName(ctx, name)
}
