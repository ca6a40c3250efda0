// Package wsswitch samples per-camera motion-detection state on a fixed
// interval and notifies listeners when a camera flips between detecting and
// idle. Listeners run on the sampler goroutine and must be fast.
package wsswitch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Prober answers whether motion detection is currently active for a camera.
// The production prober asks the motion daemon's control socket; tests inject
// a fake.
type Prober interface {
	Detecting(cameraID int) (bool, error)
}

// Listener is invoked on every observed state change.
type Listener func(cameraID int, detecting bool)

// Switch is the sampling subsystem.
type Switch struct {
	mu        sync.Mutex
	prober    Prober
	cameraIDs func() []int
	listeners []Listener
	interval  time.Duration
	logger    *slog.Logger

	last map[int]bool

	quit chan struct{}
	done chan struct{}
}

// New builds a switch sampling the given cameras through prober.
func New(prober Prober, cameraIDs func() []int, interval time.Duration, logger *slog.Logger) *Switch {
	if interval <= 0 {
		interval = time.Second
	}
	return &Switch{
		prober:    prober,
		cameraIDs: cameraIDs,
		interval:  interval,
		logger:    logger,
		last:      make(map[int]bool),
	}
}

// Subscribe registers a state-change listener. Must be called before Start.
func (s *Switch) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Start launches the sampling loop.
func (s *Switch) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return fmt.Errorf("wsswitch already started")
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.quit, s.done)
	return nil
}

func (s *Switch) loop(quit, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			s.sample()
		}
	}
}

// Stop cancels the loop and waits for an in-flight sample pass.
func (s *Switch) Stop() error {
	s.mu.Lock()
	quit, done := s.quit, s.done
	s.quit, s.done = nil, nil
	s.mu.Unlock()
	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return nil
}

// Running reports whether the sampling loop is active.
func (s *Switch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

func (s *Switch) sample() {
	for _, id := range s.cameraIDs() {
		detecting, err := s.prober.Detecting(id)
		if err != nil {
			s.logger.Debug("detection probe failed", "camera", id, "error", err)
			continue
		}
		s.mu.Lock()
		prev, seen := s.last[id]
		s.last[id] = detecting
		listeners := s.listeners
		s.mu.Unlock()
		if seen && prev == detecting {
			continue
		}
		for _, l := range listeners {
			l(id, detecting)
		}
	}
}
