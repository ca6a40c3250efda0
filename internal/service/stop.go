package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cameye/cameye/internal/pidfile"
)

// Sentinel errors for the CLI to map onto exit statuses.
var (
	// ErrAlreadyRunning: a live instance already holds the pid file.
	ErrAlreadyRunning = errors.New("server is already running")
	// ErrNotRunning: stop/status found no live instance.
	ErrNotRunning = errors.New("server is not running")
	// ErrForcedKill: the instance ignored the terminate signal and was killed.
	ErrForcedKill = errors.New("server did not exit gracefully and was killed")
)

// AcquirePidFile enforces the single-instance rule. A pid file naming a live
// process means another instance owns this run directory; a stale or missing
// file is claimed by writing our own pid.
func AcquirePidFile(path string) error {
	if pid, ok := pidfile.AlivePid(path); ok {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}
	if err := pidfile.Write(path, os.Getpid()); err != nil {
		return fmt.Errorf("write pid file %s: %w", path, err)
	}
	return nil
}

// ReleasePidFile removes the pid file on the way out. Best effort.
func ReleasePidFile(path string) {
	_ = pidfile.Remove(path)
}

// RunningPid reports the pid of the live instance recorded in the pid file,
// or ErrNotRunning.
func RunningPid(path string) (int, error) {
	pid, ok := pidfile.AlivePid(path)
	if !ok {
		return 0, ErrNotRunning
	}
	return pid, nil
}

// StopOptions tunes the stop polling. Zero values mean the defaults: 50
// liveness polls 100ms apart before escalating.
type StopOptions struct {
	Attempts int
	Interval time.Duration

	// seams for tests; nil means the real OS operations
	Signal func(pid int, kill bool) error
	Alive  func(pid int) bool
}

func (o StopOptions) withDefaults() StopOptions {
	if o.Attempts <= 0 {
		o.Attempts = 50
	}
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	if o.Signal == nil {
		o.Signal = signalProcess
	}
	if o.Alive == nil {
		o.Alive = pidfile.Alive
	}
	return o
}

// StopDaemon terminates the instance recorded in the pid file: a terminate
// signal, a bounded liveness poll, then exactly one kill signal if the
// process never exits. The pid file is removed in every exit path that ends
// the process.
func StopDaemon(path string, opts StopOptions, logger *slog.Logger) error {
	opts = opts.withDefaults()

	pid, ok := pidfile.AlivePid(path)
	if !ok {
		return ErrNotRunning
	}

	logger.Info("stopping server", "pid", pid)
	if err := opts.Signal(pid, false); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	for i := 0; i < opts.Attempts; i++ {
		time.Sleep(opts.Interval)
		if !opts.Alive(pid) {
			_ = pidfile.Remove(path)
			logger.Info("server stopped", "pid", pid)
			return nil
		}
	}

	logger.Warn("server did not exit, killing it", "pid", pid)
	if err := opts.Signal(pid, true); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	_ = pidfile.Remove(path)
	return fmt.Errorf("%w (pid %d)", ErrForcedKill, pid)
}
