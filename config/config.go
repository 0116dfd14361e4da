package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration, built once at startup and
// passed down to the server wiring
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Chroma    ChromaConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Gate      GateConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// ChromaConfig holds ChromaDB connection settings
type ChromaConfig struct {
	Host     string
	Port     int
	Tenant   string
	Database string
}

// LLMConfig holds generation provider settings (OpenAI-compatible endpoint)
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GateConfig holds generation admission control settings
type GateConfig struct {
	Capacity int
	Timeout  time.Duration
}

// WorkerConfig holds background index worker settings
type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
}

// Load reads configuration from the environment, with a .env file applied
// first when present
func Load(logger *log.Logger) *Config {
	if err := godotenv.Load(); err == nil {
		logger.Println("Loaded configuration from .env file")
	}

	return &Config{
		Server: ServerConfig{
			Port: envString("SERVER_PORT", "8080"),
		},
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "localhost"),
			Port:     envInt("REDIS_PORT", 6379),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			PoolSize: envInt("REDIS_POOL_SIZE", 10),
		},
		Chroma: ChromaConfig{
			Host:     envString("CHROMA_HOST", "localhost"),
			Port:     envInt("CHROMA_PORT", 8000),
			Tenant:   envString("CHROMA_TENANT", "default_tenant"),
			Database: envString("CHROMA_DATABASE", "default_database"),
		},
		LLM: LLMConfig{
			BaseURL: envString("LLM_BASE_URL", "http://localhost:1234/v1"),
			APIKey:  envString("LLM_API_KEY", ""),
			Model:   envString("LLM_MODEL", "local-model"),
		},
		Embedding: EmbeddingConfig{
			BaseURL: envString("EMBEDDING_BASE_URL", "https://generativelanguage.googleapis.com"),
			APIKey:  envString("EMBEDDING_API_KEY", ""),
			Model:   envString("EMBEDDING_MODEL", "text-embedding-004"),
		},
		Gate: GateConfig{
			Capacity: envInt("GENERATION_GATE_CAPACITY", 2),
			Timeout:  envDuration("GENERATION_GATE_TIMEOUT", 45*time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:  envInt("INDEX_WORKER_CONCURRENCY", 2),
			PollInterval: envDuration("INDEX_WORKER_POLL_INTERVAL", 2*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
