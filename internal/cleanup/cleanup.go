// Package cleanup periodically removes media files that have outlived their
// camera's preservation window.
package cleanup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cameye/cameye/internal/camera"
	"github.com/cameye/cameye/internal/metrics"
)

// Sweeper walks camera target directories on a fixed interval, deleting
// files older than each camera's preserve window. Cameras with
// PreserveDays <= 0 keep everything.
type Sweeper struct {
	mu       sync.Mutex
	cameras  *camera.Registry
	interval time.Duration
	logger   *slog.Logger

	quit chan struct{}
	done chan struct{}

	now func() time.Time // test seam
}

// NewSweeper builds a sweeper. Interval <= 0 means the sweep is disabled and
// Start becomes a no-op; the orchestrator checks Enabled before wiring it.
func NewSweeper(cameras *camera.Registry, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cameras:  cameras,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled reports whether the sweep is configured to run.
func (s *Sweeper) Enabled() bool { return s.interval > 0 }

// Start launches the sweep loop.
func (s *Sweeper) Start() error {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return fmt.Errorf("cleanup already started")
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.quit, s.done)
	return nil
}

func (s *Sweeper) loop(quit, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			s.SweepOnce()
		}
	}
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() error {
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

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

// SweepOnce removes expired media files for every camera. Per-file and
// per-camera failures are logged and do not abort the rest of the sweep.
func (s *Sweeper) SweepOnce() {
	for _, id := range s.cameras.IDs() {
		cam, ok := s.cameras.Get(id)
		if !ok || cam.PreserveDays <= 0 || cam.TargetDir == "" {
			continue
		}
		cutoff := s.now().AddDate(0, 0, -cam.PreserveDays)
		removed, err := removeOlderThan(cam.TargetDir, cutoff)
		if err != nil {
			s.logger.Error("cleanup sweep failed", "camera", id, "dir", cam.TargetDir, "error", err)
			continue
		}
		if removed > 0 {
			metrics.AddCleanupRemoved(removed)
			s.logger.Info("cleanup removed expired media", "camera", id, "files", removed)
		}
	}
}

func removeOlderThan(dir string, cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
