package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Router maps OS signals to in-process actions. Interrupt/terminate cancel
// the run context; the child-exit signal reaps adopted auxiliary children.
// Children launched through os/exec are waited by their own handles and are
// deliberately not touched here: a process-wide wait would steal their exit
// status out from under exec. Install is idempotent and intended to be
// called once per process; the handler goroutine closes over the one
// controller-owned cancel func rather than any package global.
type Router struct {
	once   sync.Once
	logger *slog.Logger

	mu      sync.Mutex
	adopted map[int]struct{}
}

// NewRouter builds a signal router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{logger: logger, adopted: make(map[int]struct{})}
}

// Adopt registers an auxiliary child that no exec handle will wait for. The
// router collects its exit status on the child-exit signal so it cannot
// linger as a zombie.
func (r *Router) Adopt(pid int) {
	r.mu.Lock()
	r.adopted[pid] = struct{}{}
	r.mu.Unlock()
}

// reapAdopted collects every finished adopted child without blocking and
// forgets the ones that are gone.
func (r *Router) reapAdopted() {
	r.mu.Lock()
	pids := make([]int, 0, len(r.adopted))
	for pid := range r.adopted {
		pids = append(pids, pid)
	}
	r.mu.Unlock()
	for _, pid := range pids {
		if reaped(pid) {
			r.mu.Lock()
			delete(r.adopted, pid)
			r.mu.Unlock()
		}
	}
}

// Install registers the handlers. The goroutine only cancels the context or
// reaps adopted children; all real shutdown work happens after the run loop
// returns to the orchestrator.
func (r *Router) Install(cancel context.CancelFunc) {
	r.once.Do(func() {
		stop := make(chan os.Signal, 2)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		child := childExitChan()
		go func() {
			for {
				select {
				case sig := <-stop:
					r.logger.Info("interrupt signal received, shutting down", "signal", sig.String())
					cancel()
				case <-child:
					r.reapAdopted()
				}
			}
		}()
	})
}
