package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"voicetranscribe/internal/api"
	"voicetranscribe/internal/config"
	"voicetranscribe/internal/metrics"
	"voicetranscribe/internal/repository"
	"voicetranscribe/internal/service"
	"voicetranscribe/internal/storage"
	"voicetranscribe/internal/stt"
	"voicetranscribe/internal/transcribe"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	provider, err := stt.CreateProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to create STT provider: %v", err)
	}
	log.Printf("STT provider initialized: %s (language %s, timeout %v, retries %d)",
		provider.Name(), cfg.Transcription.Language, cfg.Transcription.Timeout, cfg.Transcription.MaxRetries)

	var repo repository.TranscriptionRepository
	if cfg.DatabasePath != "" {
		log.Printf("Opening SQLite database at %s...", cfg.DatabasePath)
		sqliteRepo, closeDB, err := repository.NewSQLiteRepository(context.Background(), cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer closeDB()
		repo = sqliteRepo
	} else {
		log.Println("DATABASE_PATH not set, running without database (in-memory storage only)")
		repo = repository.NewMemoryRepository()
	}

	m := metrics.NewMetrics()
	transcriber := transcribe.New(provider, transcribe.Options{
		Language:   cfg.Transcription.Language,
		Timeout:    cfg.Transcription.Timeout,
		MaxRetries: cfg.Transcription.MaxRetries,
		Metrics:    m,
	})
	svc := service.New(storage.NewChunkStore(), transcriber, repo, m)
	svc.SetSessionLimit(cfg.MaxSessionBytes)

	r := gin.Default()

	// Add CORS middleware for browser clients
	r.Use(corsMiddleware())
	r.Use(api.MetricsMiddleware(m))

	// Register routes
	api.NewHandler(svc, m, cfg.MaxUploadBytes).RegisterRoutes(r)

	log.Printf("Voice transcription backend running on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
