package db

import (
	"context"
	"testing"
	"time"
)

// TestNewRedisClient tests client initialization
func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name   string
		config RedisConfig
	}{
		{
			name: "default config",
			config: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		{
			name: "custom config with all fields",
			config: RedisConfig{
				Host:         "redis.example.com",
				Port:         6380,
				Password:     "secret",
				DB:           1,
				PoolSize:     20,
				MinIdleConns: 10,
				MaxRetries:   5,
				DialTimeout:  10 * time.Second,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 5 * time.Second,
			},
		},
		{
			name:   "empty config uses defaults",
			config: RedisConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.config)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Expected non-nil client")
			}
			if client.GetClient() == nil {
				t.Error("Expected non-nil underlying client")
			}
			client.Close()
		})
	}
}

// TestDefaultRedisConfig verifies the defaults the server wiring relies on
func TestDefaultRedisConfig(t *testing.T) {
	config := DefaultRedisConfig()

	if config.Host != "localhost" {
		t.Errorf("Expected host localhost, got %s", config.Host)
	}
	if config.Port != 6379 {
		t.Errorf("Expected port 6379, got %d", config.Port)
	}
	if config.DB != 0 {
		t.Errorf("Expected DB 0, got %d", config.DB)
	}
	if config.PoolSize != 10 {
		t.Errorf("Expected pool size 10, got %d", config.PoolSize)
	}
}

// TestRedisClient_Ping tests connectivity against a live server
func TestRedisClient_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, err := NewRedisClient(DefaultRedisConfig())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Log("✅ Ping successful")
}

// TestRedisClient_ContextCancellation verifies cancelled contexts abort calls
func TestRedisClient_ContextCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	client, err := NewRedisClient(DefaultRedisConfig())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Ping(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
