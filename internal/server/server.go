package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"docqa/config"
	"docqa/internal/db"
	"docqa/internal/handlers"
	"docqa/internal/repositories"
	"docqa/internal/routes"
	"docqa/internal/services"
	"docqa/internal/workers"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewServer wires up repositories, services, handlers, and the background
// index worker, and returns a ready-to-run HTTP server
func NewServer() (*http.Server, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)
	cfg := config.Load(logger)

	docRepo, vectorRepo, jobRepo, convRepo, err := initializeRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Model provider clients
	embeddingClient := services.NewGeminiEmbeddingClient(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	generationClient := services.NewOpenAICompatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)

	// Core services
	chunker := services.NewChunkerService(logger)
	embedder := services.NewEmbedderService(embeddingClient, logger)
	indexingService := services.NewIndexingService(chunker, embedder, docRepo, vectorRepo, logger)
	documentService := services.NewDocumentService(docRepo, jobRepo, logger)
	searchService := services.NewSearchService(vectorRepo, docRepo, embeddingClient, logger)
	retriever := services.NewRetrieverService(vectorRepo, docRepo, embeddingClient, logger)
	resolver := services.NewConversationResolver(logger)

	gate := services.NewGenerationGate(cfg.Gate.Capacity, cfg.Gate.Timeout, logger)
	qaService := services.NewQAService(
		generationClient,
		services.NewCitationValidator(),
		services.NewConfidenceScorer(logger),
		gate,
		logger,
	)

	// Background index worker
	pool := workers.NewWorkerPool()
	pool.AddWorker(workers.NewIndexWorker(workers.WorkerConfig{
		WorkerName:      "index-worker",
		Concurrency:     cfg.Worker.Concurrency,
		PollInterval:    cfg.Worker.PollInterval,
		ShutdownTimeout: 30 * time.Second,
		RetryDelay:      5 * time.Second,
		EnableRecovery:  true,
	}, jobRepo, indexingService, logger))

	if err := pool.StartAll(context.Background()); err != nil {
		logger.Printf("⚠️  Failed to start index worker: %v", err)
	} else {
		logger.Println("✅ Index worker started")
	}

	h := &routes.Handlers{
		Health: handlers.NewHealthHandler(docRepo, vectorRepo, jobRepo, logger),
		Doc:    handlers.NewDocumentHandler(documentService, logger),
		Search: handlers.NewSearchHandler(searchService, logger),
		QA:     handlers.NewQAHandler(documentService, retriever, qaService, resolver, convRepo, logger),
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	// Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:"+cfg.Server.Port+"/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	return &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: corsMiddleware(router),
	}, nil
}

// initializeRepositories connects to Redis and ChromaDB and builds the
// repository layer. Both stores are required.
func initializeRepositories(cfg *config.Config, logger *log.Logger) (
	repositories.DocumentRepository,
	repositories.VectorRepository,
	repositories.JobRepository,
	repositories.ConversationRepository,
	error,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisConfig := db.DefaultRedisConfig()
	redisConfig.Host = cfg.Redis.Host
	redisConfig.Port = cfg.Redis.Port
	redisConfig.Password = cfg.Redis.Password
	redisConfig.DB = cfg.Redis.DB
	redisConfig.PoolSize = cfg.Redis.PoolSize

	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", redisConfig.Host, redisConfig.Port, redisConfig.DB)

	redisClient, err := db.NewRedisClient(redisConfig)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := redisClient.Ping(ctx); err != nil {
		logger.Printf("❌ Redis connection failed: %v", err)
		logger.Println("   Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
		return nil, nil, nil, nil, err
	}
	logger.Println("✅ Redis connected successfully")

	chromaClient := db.NewChromaDBClient(db.ChromaDBConfig{
		Host:     cfg.Chroma.Host,
		Port:     cfg.Chroma.Port,
		Tenant:   cfg.Chroma.Tenant,
		Database: cfg.Chroma.Database,
		Timeout:  30 * time.Second,
	})

	logger.Printf("Connecting to ChromaDB: %s:%d", cfg.Chroma.Host, cfg.Chroma.Port)

	if err := chromaClient.Heartbeat(ctx); err != nil {
		logger.Printf("❌ ChromaDB connection failed: %v", err)
		logger.Println("   Hint: Ensure ChromaDB is running (docker run -d -p 8000:8000 chromadb/chroma)")
		return nil, nil, nil, nil, err
	}
	logger.Println("✅ ChromaDB connected successfully")

	vectorRepo := repositories.NewChromaVectorRepository(chromaClient)
	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		logger.Printf("❌ Failed to ensure chunk collection: %v", err)
		return nil, nil, nil, nil, err
	}

	docRepo := repositories.NewRedisDocumentRepository(redisClient, logger)
	jobRepo := repositories.NewRedisJobRepository(redisClient, logger)
	convRepo := repositories.NewRedisConversationRepository(redisClient, logger)

	logger.Println("✅ All repositories initialized successfully")

	return docRepo, vectorRepo, jobRepo, convRepo, nil
}
