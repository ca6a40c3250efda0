// Package tasks is the durable deferred-task scheduler: named handlers are
// registered in code, task instances (name + payload + run time) are
// persisted in SQLite, and a poll loop fires whatever is due.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cameye/cameye/internal/metrics"
)

// Handler executes one task payload. Errors are logged; the task is not
// retried (callers that need retries schedule a follow-up task themselves).
type Handler func(ctx context.Context, payload string) error

// Scheduler polls the store and dispatches due tasks to registered handlers.
type Scheduler struct {
	mu       sync.Mutex
	store    *Store
	handlers map[string]Handler
	interval time.Duration
	logger   *slog.Logger

	quit chan struct{}
	done chan struct{}
}

// NewScheduler builds a scheduler around store, polling at interval.
func NewScheduler(store *Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		store:    store,
		handlers: make(map[string]Handler),
		interval: interval,
		logger:   logger,
	}
}

// Register binds a handler name. Must be called before Start; task rows
// referencing an unknown handler are dropped with a warning at dispatch.
func (s *Scheduler) Register(name string, h Handler) {
	s.mu.Lock()
	s.handlers[name] = h
	s.mu.Unlock()
}

// Schedule persists a task to run after delay.
func (s *Scheduler) Schedule(ctx context.Context, name, payload string, delay time.Duration) (int64, error) {
	return s.store.Add(ctx, name, payload, time.Now().Add(delay))
}

// Start launches the poll loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return fmt.Errorf("task scheduler already started")
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.quit, s.done)
	return nil
}

func (s *Scheduler) loop(quit, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			s.runDue(context.Background())
		}
	}
}

// Stop cancels the loop, waits for an in-flight dispatch pass, and closes
// the store.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	quit, done := s.quit, s.done
	s.quit, s.done = nil, nil
	s.mu.Unlock()
	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return s.store.Close()
}

// Running reports whether the poll loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

// runDue executes every due task once and removes it. Handler errors never
// escape: the row is consumed either way and the outcome is logged.
func (s *Scheduler) runDue(ctx context.Context) {
	due, err := s.store.Due(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to query due tasks", "error", err)
		return
	}
	for _, t := range due {
		s.mu.Lock()
		h, ok := s.handlers[t.Name]
		s.mu.Unlock()
		if rmErr := s.store.Remove(ctx, t.ID); rmErr != nil {
			s.logger.Error("failed to remove task", "id", t.ID, "error", rmErr)
		}
		if !ok {
			s.logger.Warn("dropping task with unknown handler", "name", t.Name, "id", t.ID)
			metrics.IncTaskExecuted("dropped")
			continue
		}
		if err := h(ctx, t.Payload); err != nil {
			s.logger.Error("task failed", "name", t.Name, "id", t.ID, "error", err)
			metrics.IncTaskExecuted("error")
			continue
		}
		metrics.IncTaskExecuted("ok")
	}
}
