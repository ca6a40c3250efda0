// Package mjpg garbage-collects idle MJPEG streaming clients. Clients
// register themselves per camera and bump their access time on every frame;
// the pool closes whatever has been idle past the configured timeout.
package mjpg

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	cameraID   int
	closer     io.Closer
	lastAccess time.Time
}

// Pool is the streaming-client pool subsystem.
type Pool struct {
	mu      sync.Mutex
	clients map[int]*entry // keyed by camera id, one client per camera
	timeout time.Duration
	logger  *slog.Logger

	quit chan struct{}
	done chan struct{}

	now func() time.Time // test seam
}

// NewPool builds a pool. Timeout <= 0 disables the garbage collector and
// Start becomes a no-op; the orchestrator checks Enabled before wiring it.
func NewPool(timeout time.Duration, logger *slog.Logger) *Pool {
	return &Pool{
		clients: make(map[int]*entry),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether the garbage collector is configured to run.
func (p *Pool) Enabled() bool { return p.timeout > 0 }

// Register adds (or replaces) the streaming client for a camera. A replaced
// client is closed.
func (p *Pool) Register(cameraID int, c io.Closer) {
	p.mu.Lock()
	old := p.clients[cameraID]
	p.clients[cameraID] = &entry{cameraID: cameraID, closer: c, lastAccess: p.now()}
	p.mu.Unlock()
	if old != nil {
		_ = old.closer.Close()
	}
}

// Touch marks the camera's client as recently used.
func (p *Pool) Touch(cameraID int) {
	p.mu.Lock()
	if e, ok := p.clients[cameraID]; ok {
		e.lastAccess = p.now()
	}
	p.mu.Unlock()
}

// Len returns the number of live clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Start launches the sweep loop.
func (p *Pool) Start() error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quit != nil {
		return fmt.Errorf("mjpg pool already started")
	}
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(p.quit, p.done)
	return nil
}

func (p *Pool) loop(quit, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(p.timeout / 2)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			p.SweepOnce()
		}
	}
}

// Stop cancels the sweep loop and closes every remaining client.
func (p *Pool) Stop() error {
	p.mu.Lock()
	quit, done := p.quit, p.done
	p.quit, p.done = nil, nil
	p.mu.Unlock()
	if quit != nil {
		close(quit)
		<-done
	}
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[int]*entry)
	p.mu.Unlock()
	for _, e := range clients {
		_ = e.closer.Close()
	}
	return nil
}

// Running reports whether the sweep loop is active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quit != nil
}

// SweepOnce closes clients idle past the timeout.
func (p *Pool) SweepOnce() {
	cutoff := p.now().Add(-p.timeout)
	var expired []*entry
	p.mu.Lock()
	for id, e := range p.clients {
		if e.lastAccess.Before(cutoff) {
			expired = append(expired, e)
			delete(p.clients, id)
		}
	}
	p.mu.Unlock()
	for _, e := range expired {
		_ = e.closer.Close()
		p.logger.Debug("closed idle mjpg client", "camera", e.cameraID)
	}
}
