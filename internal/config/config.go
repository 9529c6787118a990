package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Chroma vector store
	ChromaURL       string
	CollectionName  string
	ChromaTimeout   int // seconds
	IndexSentinelID string

	// Gemini
	GeminiAPIKey    string
	GeminiTier      string
	LLMModelName    string
	LLMTemperature  float64
	EmbeddingsModel string

	// Retrieval / generation
	RAGTopK        int
	SnippetLength  int
	IngestionBatch int

	// Upload limits
	MaxFileSize       int64
	MaxFilesPerUpload int
	AllowedExtensions []string
	FileStorageDir    string

	// Chunking
	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	// Redis (answer cache + asynq)
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	AnswerCacheTTL int // seconds, 0 disables the cache

	// Rate limiting (per IP + endpoint, 0 disables)
	RateLimitReqs   int
	RateLimitWindow int // seconds

	// MongoDB (ingest job tracking)
	MongoURI string
	DBName   string

	// Worker maintenance
	JobRetentionDays int
	CleanupCron      string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		ChromaURL:       getEnv("CHROMA_URL", "http://localhost:8000"),
		CollectionName:  getEnv("RAG_COLLECTION_NAME", "rag_documents"),
		ChromaTimeout:   getEnvInt("CHROMA_TIMEOUT", 30),
		IndexSentinelID: getEnv("DOCUMENT_INDEX_ID", "__DOCUMENT_INDEX__"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		LLMModelName:    getEnv("LLM_MODEL_NAME", "gemini-2.0-flash"),
		LLMTemperature:  getEnvFloat64("LLM_TEMPERATURE", 0.0),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		RAGTopK:        getEnvInt("RAG_K_DOCUMENTS", 4),
		SnippetLength:  getEnvInt("SOURCE_SNIPPET_LENGTH", 200),
		IngestionBatch: getEnvInt("INGESTION_BATCH_SIZE", 10),

		MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB per file
		MaxFilesPerUpload: getEnvInt("MAX_FILES_PER_UPLOAD", 10),
		AllowedExtensions: strings.Split(getEnv("ALLOWED_EXTENSIONS", ".pdf,.txt,.html,.htm,.xlsx"), ","),
		FileStorageDir:    getEnv("FILE_STORAGE_DIR", "./storage"),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1500),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		AnswerCacheTTL: getEnvInt("ANSWER_CACHE_TTL", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/rag_platform"),
		DBName:   getEnv("DB_NAME", "rag_platform"),

		JobRetentionDays: getEnvInt("JOB_RETENTION_DAYS", 7),
		CleanupCron:      getEnv("CLEANUP_CRON", "0 3 * * *"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.IngestionBatch <= 0 {
		return nil, fmt.Errorf("INGESTION_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
