package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rag-document-platform/internal/config"
	"rag-document-platform/internal/logger"
	"rag-document-platform/internal/queue"
	"rag-document-platform/internal/telemetry"
	"rag-document-platform/models"
	"rag-document-platform/services"
	"rag-document-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// DocumentListResponse is the GET /documents payload.
type DocumentListResponse struct {
	Count     int      `json:"count"`
	Documents []string `json:"documents"`
}

// IngestionResponse is the POST /documents/ingest payload.
type IngestionResponse struct {
	TotalChunksAdded    int      `json:"total_chunks_added"`
	ProcessedFilesCount int      `json:"processed_files_count"`
	FilesWithErrors     []string `json:"files_with_errors"`
	Message             string   `json:"message"`
}

// DeleteResponse is the DELETE /documents/:filename payload.
type DeleteResponse struct {
	Message         string `json:"message"`
	DeletedFilename string `json:"deleted_filename"`
}

type enqueueFunc func(task *asynq.Task) error

// SetupDocumentRoutes wires the document listing, ingestion and deletion
// endpoints. queueClient may be nil, which disables the async path.
func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, ingestion *services.IngestionService, indexer services.DocumentIndexer, jobs *mongo.Collection, queueClient *asynq.Client, metrics *telemetry.Metrics) {
	docs := router.Group("/documents")

	docs.GET("", func(c *gin.Context) {
		names, err := indexer.ListNames(c.Request.Context())
		if err != nil {
			logger.Error("Failed to list documents", "error", err)
			utils.RespondWithInternalError(c, "Error reading index from the vector store", nil)
			return
		}
		c.JSON(http.StatusOK, DocumentListResponse{Count: len(names), Documents: names})
	})

	docs.POST("/ingest", func(c *gin.Context) {
		files, ok := validatedUploads(c, cfg)
		if !ok {
			return
		}

		start := time.Now()
		result, err := ingestion.ProcessAndStoreFiles(c.Request.Context(), services.FileInputsFromMultipart(files))
		if err != nil {
			logger.Error("Ingestion failed", "error", err)
			utils.RespondWithInternalError(c, "Error writing to the vector store", nil)
			return
		}
		metrics.RecordIngestion(c.Request.Context(), result.TotalChunksAdded, time.Since(start).Seconds(), len(result.FilesWithErrors) > 0)

		processed := len(files) - len(result.FilesWithErrors)
		c.JSON(http.StatusOK, IngestionResponse{
			TotalChunksAdded:    result.TotalChunksAdded,
			ProcessedFilesCount: processed,
			FilesWithErrors:     result.FilesWithErrors,
			Message:             fmt.Sprintf("Ingestion process completed. Processed %d files successfully.", processed),
		})
	})

	if queueClient != nil && jobs != nil {
		docs.POST("/ingest-async", handleAsyncIngest(cfg, jobs, func(task *asynq.Task) error {
			_, err := queueClient.Enqueue(task)
			return err
		}))

		docs.GET("/jobs/:id", func(c *gin.Context) {
			var job models.IngestJob
			err := jobs.FindOne(c.Request.Context(), bson.M{"job_id": c.Param("id")}).Decode(&job)
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Ingest job not found")
				return
			}
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to look up ingest job", nil)
				return
			}
			c.JSON(http.StatusOK, job)
		})
	}

	docs.DELETE("/:filename", func(c *gin.Context) {
		filename := c.Param("filename")
		logger.Info("Deletion request for document received", "filename", filename)

		err := ingestion.DeleteDocument(c.Request.Context(), filename)
		var notFound *services.NotFoundError
		if errors.As(err, &notFound) {
			utils.RespondWithNotFound(c, fmt.Sprintf("Document '%s' not found.", filename))
			return
		}
		if err != nil {
			logger.Error("Failed to delete document", "filename", filename, "error", err)
			utils.RespondWithInternalError(c, "Error deleting document from the vector store", nil)
			return
		}

		if metrics != nil {
			metrics.DocumentsDeleted.Add(c.Request.Context(), 1)
		}
		c.JSON(http.StatusOK, DeleteResponse{
			Message:         "Document and all its associated chunks have been successfully deleted.",
			DeletedFilename: filename,
		})
	})
}

// handleAsyncIngest stores the uploads under the storage dir, records an
// IngestJob and enqueues it for the worker.
func handleAsyncIngest(cfg *config.Config, jobs *mongo.Collection, enqueue enqueueFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		files, ok := validatedUploads(c, cfg)
		if !ok {
			return
		}

		jobID := uuid.NewString()
		uploadDir := filepath.Join(cfg.FileStorageDir, "uploads", jobID)
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		var filenames, storedPaths []string
		for i, fh := range files {
			path := filepath.Join(uploadDir, fmt.Sprintf("%d%s", i, strings.ToLower(filepath.Ext(fh.Filename))))
			if err := saveUpload(fh, path); err != nil {
				logger.Error("Failed to store upload", "filename", fh.Filename, "error", err)
				os.RemoveAll(uploadDir)
				utils.RespondWithInternalError(c, "Failed to store uploaded file", nil)
				return
			}
			filenames = append(filenames, fh.Filename)
			storedPaths = append(storedPaths, path)
		}

		job := models.IngestJob{
			JobID:       jobID,
			Filenames:   filenames,
			StoredPaths: storedPaths,
			Status:      models.JobStatusPending,
			CreatedAt:   time.Now(),
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if _, err := jobs.InsertOne(ctx, job); err != nil {
			os.RemoveAll(uploadDir)
			utils.RespondWithInternalError(c, "Failed to record ingest job", nil)
			return
		}

		task, err := queue.NewIngestTask(jobID)
		if err == nil {
			err = enqueue(task)
		}
		if err != nil {
			logger.Error("Failed to enqueue ingest job", "job_id", jobID, "error", err)
			if _, updateErr := jobs.UpdateOne(ctx, bson.M{"job_id": jobID}, bson.M{"$set": bson.M{
				"status":        models.JobStatusFailed,
				"error_message": "failed to enqueue",
			}}); updateErr != nil {
				logger.Error("Failed to mark ingest job as failed", "job_id", jobID, "error", updateErr)
			}
			utils.RespondWithInternalError(c, "Failed to enqueue ingest job", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"job_id":  jobID,
			"status":  models.JobStatusPending,
			"message": fmt.Sprintf("Accepted %d files for background ingestion.", len(files)),
		})
	}
}

// validatedUploads parses the multipart form and enforces the upload
// limits: file count, per-file size and allowed extensions.
func validatedUploads(c *gin.Context, cfg *config.Config) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
		return nil, false
	}

	files := form.File["files"]
	if len(files) == 0 {
		utils.RespondWithBadRequest(c, "No files provided", nil)
		return nil, false
	}
	if len(files) > cfg.MaxFilesPerUpload {
		utils.RespondWithBadRequest(c, fmt.Sprintf("Too many files: maximum is %d per request", cfg.MaxFilesPerUpload), nil)
		return nil, false
	}

	for _, fh := range files {
		if fh.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, fmt.Sprintf("File '%s' exceeds the maximum size", fh.Filename), nil)
			return nil, false
		}
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !extensionAllowed(ext, cfg.AllowedExtensions) {
			utils.RespondWithUnsupportedMedia(c, fmt.Sprintf("File type '%s' for file '%s' is not supported.", ext, fh.Filename))
			return nil, false
		}
	}
	return files, true
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == strings.ToLower(strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
