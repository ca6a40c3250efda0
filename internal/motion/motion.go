// Package motion supervises the external motion daemon: it starts and stops
// the process, tracks its lifecycle state, and drives the recurring health
// check that auto-restarts motion when it dies unexpectedly.
package motion

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/cameye/cameye/internal/metrics"
	"github.com/cameye/cameye/internal/pidfile"
)

// State is the supervisor-owned lifecycle state of the motion daemon.
type State string

const (
	StateNotStarted State = "not_started"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// WorkloadSource answers whether any configured workload needs the local
// motion daemon. The camera registry implements it; the supervisor treats it
// as read-only.
type WorkloadSource interface {
	AnyEnabledLocal() bool
}

// Config locates the motion binary and its runtime files.
type Config struct {
	Binary     string
	ConfigFile string // optional -c argument
	PIDFile    string // where the supervisor records motion's pid
	WorkDir    string
}

// Supervisor owns the motion process handle and its pid file exclusively.
// All state mutations happen under mu; the health-check loop runs in its own
// goroutine and goes through the same public methods.
type Supervisor struct {
	mu      sync.Mutex
	cfg     Config
	cameras WorkloadSource
	logger  *slog.Logger

	state     State
	startedUp bool // a start was requested; only a deliberate stop withdraws it

	quit chan struct{}
	done chan struct{}

	// seams for tests; production values set in New
	launch    func() (int, error)
	alive     func() bool
	terminate func(pid int, kill bool) error
}

// New builds a supervisor. No process is touched until Start.
func New(cfg Config, cameras WorkloadSource, logger *slog.Logger) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		cameras: cameras,
		logger:  logger,
		state:   StateNotStarted,
	}
	s.launch = s.launchProcess
	s.alive = func() bool {
		_, ok := pidfile.AlivePid(cfg.PIDFile)
		return ok
	}
	s.terminate = terminatePid
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the motion process is currently alive, probed via
// its pid file. It never trusts the state machine alone: the process can die
// underneath us between checks.
func (s *Supervisor) Running() bool {
	return s.alive()
}

// Started reports whether a start has been requested and not withdrawn by
// Stop. It stays set across a failed or deferred launch, so the health check
// keeps trying, and a deliberate Stop clears it, so the check never revives
// a process the operator shut down.
func (s *Supervisor) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedUp
}

// Start launches the motion daemon. It is a no-op when no enabled camera
// requires it. A launch failure leaves the state at NotStarted and is
// returned for the caller to log; it never panics or exits.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.state == StateStarting || s.state == StateRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.cameras.AnyEnabledLocal() {
		s.logger.Debug("no enabled local cameras, not starting motion")
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.startedUp = true
	s.mu.Unlock()

	pid, err := s.launch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateNotStarted
		return fmt.Errorf("start motion: %w", err)
	}
	if werr := pidfile.Write(s.cfg.PIDFile, pid); werr != nil {
		s.logger.Warn("failed to write motion pid file", "path", s.cfg.PIDFile, "error", werr)
	}
	s.state = StateRunning
	metrics.IncMotionStart()
	s.logger.Info("motion started", "pid", pid)
	return nil
}

// Stop terminates the motion daemon and withdraws any pending start request.
// Calling it when motion is not running is otherwise a no-op. SIGTERM first,
// then a bounded wait, then SIGKILL as a last resort.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.startedUp = false
	if s.state != StateRunning && s.state != StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	s.mu.Unlock()

	pid, err := pidfile.Read(s.cfg.PIDFile)
	if err != nil || !s.alive() {
		// already gone; just release the identity
		s.finishStop()
		return nil
	}
	if err := s.terminate(pid, false); err != nil {
		s.logger.Warn("failed to signal motion", "pid", pid, "error", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !s.alive() {
			s.finishStop()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	s.logger.Warn("motion did not exit in time, killing it", "pid", pid)
	if err := s.terminate(pid, true); err != nil {
		s.finishStop()
		return fmt.Errorf("kill motion pid %d: %w", pid, err)
	}
	s.finishStop()
	return nil
}

func (s *Supervisor) finishStop() {
	if err := pidfile.Remove(s.cfg.PIDFile); err != nil {
		s.logger.Warn("failed to remove motion pid file", "error", err)
	}
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	metrics.IncMotionStop()
	s.logger.Info("motion stopped")
}

// launchProcess starts motion as a non-daemonizing child. Its exit is reaped
// by a dedicated Wait goroutine so it never lingers as a zombie.
func (s *Supervisor) launchProcess() (int, error) {
	args := []string{"-n"}
	if s.cfg.ConfigFile != "" {
		args = append(args, "-c", s.cfg.ConfigFile)
	}
	// #nosec G204 -- binary and config come from the server's own config file
	cmd := exec.Command(s.cfg.Binary, args...)
	cmd.Dir = s.cfg.WorkDir
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, nil
}

// ScheduleStart marks motion as wanted without launching it now; the armed
// health check performs the actual start on its next pass. Used when the
// launch has to wait, e.g. for freshly reconciled share mounts to settle.
func (s *Supervisor) ScheduleStart() {
	s.mu.Lock()
	s.startedUp = true
	s.mu.Unlock()
}

// ScheduleHealthCheck arms the recurring liveness check. Interval zero (or
// negative) disables health checking for the lifetime of the service.
//
// The loop is self-rescheduling: each timer is created only after the
// previous check has fully completed, so a slow check delays the next one
// instead of overlapping with it.
func (s *Supervisor) ScheduleHealthCheck(interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("motion health check disabled")
		return
	}
	s.mu.Lock()
	if s.quit != nil {
		s.mu.Unlock()
		return
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	quit, done := s.quit, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			t := time.NewTimer(interval)
			select {
			case <-quit:
				t.Stop()
				return
			case <-t.C:
			}
			s.checkOnce()
		}
	}()
	s.logger.Info("motion health check armed", "interval", interval)
}

// StopHealthCheck cancels the recurring check and waits for an in-flight
// check to finish.
func (s *Supervisor) StopHealthCheck() {
	s.mu.Lock()
	quit, done := s.quit, s.done
	s.quit, s.done = nil, nil
	s.mu.Unlock()
	if quit == nil {
		return
	}
	close(quit)
	<-done
}

// checkOnce starts motion iff a start is wanted, it is not alive, and some
// workload still requires it. That covers crashed runs as well as starts
// that were deferred or failed at launch. No error escapes: a failed start
// is logged and retried on the next interval.
func (s *Supervisor) checkOnce() {
	if s.alive() {
		return
	}
	if !s.Started() {
		return
	}
	if !s.cameras.AnyEnabledLocal() {
		return
	}
	metrics.IncHealthCheckFailure()
	s.logger.Error("motion not running, starting it")
	s.mu.Lock()
	// the dead run is over; allow Start to go through
	s.state = StateNotStarted
	s.mu.Unlock()
	if err := s.Start(); err != nil {
		s.logger.Error("failed to restart motion", "error", err)
		return
	}
	metrics.IncMotionRestart()
}
