package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/metrics"
	"qbwc-webhook-adapter/internal/queue"
)

// State is the position in the default sync rotation. It lives as long as
// the Scheduler that owns it and is never persisted.
type State struct {
	mu    sync.Mutex
	index int
}

// Index returns the kind position the next default request will use.
func (s *State) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// advance returns the current index and moves to the next one, wrapping
// at n.
func (s *State) advance(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index % n
	s.index = (i + 1) % n
	return i
}

// Scheduler decides what the connector runs next: queued work first,
// otherwise the next default sync in registry order.
type Scheduler struct {
	queue       queue.Queue
	registry    *entity.Registry
	state       *State
	maxReturned int
	logger      *slog.Logger
}

// New creates a Scheduler with its own rotation state.
func New(q queue.Queue, registry *entity.Registry, maxReturned int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queue:       q,
		registry:    registry,
		state:       &State{},
		maxReturned: maxReturned,
		logger:      logger,
	}
}

// State exposes the rotation state, mainly for inspection.
func (s *Scheduler) State() *State { return s.state }

// NextRequest returns the next payload for the connector. It fails only
// when the queue cannot be read.
func (s *Scheduler) NextRequest(ctx context.Context) (string, error) {
	payload, ok, err := s.queue.Dequeue(ctx)
	if err != nil {
		return "", fmt.Errorf("dequeue: %w", err)
	}
	if ok {
		metrics.RequestsIssued.WithLabelValues("queue", "").Inc()
		s.logger.Info("Issuing queued request")
		return payload, nil
	}

	kind := s.registry.At(s.state.advance(s.registry.Len()))
	payload, err = entity.DefaultQuery(kind, s.maxReturned)
	if err != nil {
		// The registry is validated at startup, so this is a template bug.
		return "", fmt.Errorf("build default query for %s: %w", kind.Name, err)
	}
	metrics.RequestsIssued.WithLabelValues("default", kind.Name).Inc()
	s.logger.Info("Issuing default sync request", "entity", kind.Name)
	return payload, nil
}
