package services

import (
	"context"
	"errors"
	"log"
	"time"
)

// Admission control defaults. Generation backends handle only a couple of
// concurrent requests efficiently.
const (
	DefaultGateCapacity = 2
	DefaultGateTimeout  = 45 * time.Second
)

// ErrQueueFull is returned when a slot cannot be acquired before the timeout.
// It signals backpressure, not failure; callers surface it for client retry.
var ErrQueueFull = errors.New("server busy, try again later")

// GenerationGate limits concurrent generation requests
type GenerationGate struct {
	slots   chan struct{}
	timeout time.Duration
	logger  *log.Logger
}

// NewGenerationGate creates a gate with the given capacity and wait timeout
func NewGenerationGate(capacity int, timeout time.Duration, logger *log.Logger) *GenerationGate {
	if capacity <= 0 {
		capacity = DefaultGateCapacity
	}
	if timeout <= 0 {
		timeout = DefaultGateTimeout
	}
	return &GenerationGate{
		slots:   make(chan struct{}, capacity),
		timeout: timeout,
		logger:  logger,
	}
}

// Acquire blocks until a slot is free, the timeout elapses, or the context is
// canceled. On success it returns a release function that must be called
// exactly once.
func (g *GenerationGate) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, nil
	case <-timer.C:
		g.logger.Printf("Generation queue timeout - rejecting request")
		return nil, ErrQueueFull
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
