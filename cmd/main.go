package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-document-platform/internal/ai"
	"rag-document-platform/internal/config"
	"rag-document-platform/internal/index"
	"rag-document-platform/internal/logger"
	"rag-document-platform/internal/telemetry"
	"rag-document-platform/internal/vectorstore/chroma"
	"rag-document-platform/middleware"
	"rag-document-platform/routes"
	"rag-document-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("rag-document-platform")
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

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
	logger.Info("Connected to Chroma", "collection", cfg.CollectionName)

	documentIndex := index.NewDocumentIndex(store, cfg.IndexSentinelID)

	// Gemini clients: one for generation/verification, one for embeddings
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.LLMModelName, cfg.LLMTemperature, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	// Ingestion pipeline
	extractor := services.NewExtractor()
	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	ingestion := services.NewIngestionService(store, documentIndex, embedder, extractor, chunker, cfg.IngestionBatch)

	// Query workflow
	retriever := services.NewVectorRetriever(embedder, store, cfg.RAGTopK)
	workflow := services.NewQueryWorkflow(retriever, geminiClient, cfg.SnippetLength)

	// Redis backs the answer cache and the rate limiter
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, answer cache and rate limiting disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// Optional answer cache
	var answerCache *services.AnswerCache
	if cfg.AnswerCacheTTL > 0 && rdb != nil {
		answerCache = services.NewAnswerCache(rdb, time.Duration(cfg.AnswerCacheTTL)*time.Second)
	}

	// MongoDB for async ingest job tracking
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

	// Asynq client for the background ingestion queue
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(otelgin.Middleware("rag-document-platform"))
	if rdb != nil && cfg.RateLimitReqs > 0 {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupDocumentRoutes(router, cfg, ingestion, documentIndex, jobsCollection, queueClient, metrics)
	routes.SetupQueryRoutes(router, workflow, answerCache, metrics)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
