package main

import (
	"context"
	"log"
	"time"

	"rag-document-platform/internal/ai"
	"rag-document-platform/internal/config"
	"rag-document-platform/internal/index"
	"rag-document-platform/internal/logger"
	"rag-document-platform/internal/queue"
	"rag-document-platform/internal/vectorstore/chroma"
	"rag-document-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	ctx := context.Background()

	// Connect to the Chroma vector store
	store, err := chroma.NewStore(ctx, chroma.Config{
		URL:        cfg.ChromaURL,
		Collection: cfg.CollectionName,
		Timeout:    time.Duration(cfg.ChromaTimeout) * time.Second,
	})
	if err != nil {
		log.Fatal("Failed to connect to Chroma:", err)
	}

	documentIndex := index.NewDocumentIndex(store, cfg.IndexSentinelID)

	embedder, err := ai.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	extractor := services.NewExtractor()
	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	ingestion := services.NewIngestionService(store, documentIndex, embedder, extractor, chunker, cfg.IngestionBatch)

	// MongoDB for ingest job tracking
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(dctx)
	}()
	jobsCollection := mongoClient.Database(cfg.DBName).Collection("ingest_jobs")

	// Periodic cleanup of finished jobs and their stored uploads
	cleanup := services.NewCleanupService(jobsCollection, cfg.FileStorageDir, time.Duration(cfg.JobRetentionDays)*24*time.Hour)
	if err := cleanup.Start(cfg.CleanupCron); err != nil {
		log.Fatal("Failed to schedule cleanup job:", err)
	}
	defer cleanup.Stop()

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(jobsCollection, ingestion)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocuments, processor.ProcessIngest)

	logger.Info("Starting ingestion worker", "redis", redisOpt.Addr, "cleanup_cron", cfg.CleanupCron)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
