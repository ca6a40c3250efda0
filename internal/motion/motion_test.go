package motion

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type fakeWorkload struct{ local atomic.Bool }

func (f *fakeWorkload) AnyEnabledLocal() bool { return f.local.Load() }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSupervisor(t *testing.T, hasLocal bool) (*Supervisor, *fakeWorkload, *atomic.Int32) {
	t.Helper()
	w := &fakeWorkload{}
	w.local.Store(hasLocal)
	s := New(Config{
		Binary:  "motion",
		PIDFile: filepath.Join(t.TempDir(), "motion.pid"),
	}, w, discard())
	launches := &atomic.Int32{}
	s.launch = func() (int, error) {
		launches.Add(1)
		return 4242, nil
	}
	s.alive = func() bool { return true }
	s.terminate = func(int, bool) error { return nil }
	return s, w, launches
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartSkipsWithoutLocalCameras(t *testing.T) {
	s, _, launches := newTestSupervisor(t, false)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if launches.Load() != 0 {
		t.Fatal("launched motion with no enabled local cameras")
	}
	if s.State() != StateNotStarted || s.Started() {
		t.Fatalf("state = %s started = %v", s.State(), s.Started())
	}
}

func TestStartWritesPidFileAndState(t *testing.T) {
	s, _, launches := newTestSupervisor(t, true)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if launches.Load() != 1 || s.State() != StateRunning || !s.Started() {
		t.Fatalf("launches=%d state=%s started=%v", launches.Load(), s.State(), s.Started())
	}
	b, err := os.ReadFile(s.cfg.PIDFile)
	if err != nil || string(b) != "4242\n" {
		t.Fatalf("pid file: %v %q", err, string(b))
	}
	// second Start is a no-op while running
	if err := s.Start(); err != nil {
		t.Fatalf("Start again: %v", err)
	}
	if launches.Load() != 1 {
		t.Fatal("running supervisor relaunched motion")
	}
}

func TestStartFailureLeavesNotStarted(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	s.launch = func() (int, error) { return 0, errors.New("no such binary") }
	if err := s.Start(); err == nil {
		t.Fatal("Start should report launch failure")
	}
	if s.State() != StateNotStarted {
		t.Fatalf("state = %s", s.State())
	}
	// the request stays pending so the health check retries the launch
	if !s.Started() {
		t.Fatal("failed launch must not withdraw the start request")
	}
}

func TestScheduleStartDefersLaunchToHealthCheck(t *testing.T) {
	s, _, launches := newTestSupervisor(t, true)
	s.alive = func() bool { return false }

	s.ScheduleStart()
	if launches.Load() != 0 {
		t.Fatal("ScheduleStart must not launch immediately")
	}
	if !s.Started() || s.State() != StateNotStarted {
		t.Fatalf("started=%v state=%s", s.Started(), s.State())
	}

	s.checkOnce()
	if launches.Load() != 1 || s.State() != StateRunning {
		t.Fatalf("launches=%d state=%s, want the check to perform the start", launches.Load(), s.State())
	}
}

func TestStopSignalsAndRemovesPidFile(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	var termed, killed atomic.Int32
	aliveNow := atomic.Bool{}
	aliveNow.Store(true)
	s.alive = func() bool { return aliveNow.Load() }
	s.terminate = func(pid int, kill bool) error {
		if pid != 4242 {
			t.Errorf("signaled pid %d", pid)
		}
		if kill {
			killed.Add(1)
		} else {
			termed.Add(1)
			aliveNow.Store(false) // exits on SIGTERM
		}
		return nil
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if termed.Load() != 1 || killed.Load() != 0 {
		t.Fatalf("term=%d kill=%d", termed.Load(), killed.Load())
	}
	if s.State() != StateStopped || s.Started() {
		t.Fatalf("state = %s started = %v", s.State(), s.Started())
	}
	if _, err := os.Stat(s.cfg.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("pid file survived stop: %v", err)
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	var killed atomic.Int32
	s.alive = func() bool { return true } // ignores SIGTERM
	s.terminate = func(pid int, kill bool) error {
		if kill {
			killed.Add(1)
		}
		return nil
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if killed.Load() != 1 {
		t.Fatalf("kill sent %d times, want exactly 1", killed.Load())
	}
	if s.State() != StateStopped {
		t.Fatalf("state = %s", s.State())
	}
}

func TestStopWhenNotRunningIsNoop(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	var signaled atomic.Int32
	s.terminate = func(int, bool) error { signaled.Add(1); return nil }
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if signaled.Load() != 0 {
		t.Fatal("signaled a process that was never started")
	}
}

func TestCheckOnceRestartMatrix(t *testing.T) {
	cases := []struct {
		name        string
		alive       bool
		started     bool
		hasLocal    bool
		wantRestart bool
	}{
		{"alive, wanted, workload", true, true, true, false},
		{"alive, wanted, no workload", true, true, false, false},
		{"alive, not wanted, workload", true, false, true, false},
		{"alive, not wanted, no workload", true, false, false, false},
		{"dead, not wanted, workload", false, false, true, false},
		{"dead, not wanted, no workload", false, false, false, false},
		{"dead, wanted, no workload", false, true, false, false},
		{"dead, wanted, workload", false, true, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, w, launches := newTestSupervisor(t, true)
			if tc.started {
				s.ScheduleStart()
			}
			w.local.Store(tc.hasLocal)
			s.alive = func() bool { return tc.alive }

			s.checkOnce()

			if restarted := launches.Load() > 0; restarted != tc.wantRestart {
				t.Fatalf("restarted = %v, want %v", restarted, tc.wantRestart)
			}
		})
	}
}

func TestCheckOnceKeepsRetryingAfterFailedRestart(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.alive = func() bool { return false }
	var attempts atomic.Int32
	s.launch = func() (int, error) {
		attempts.Add(1)
		return 0, errors.New("still broken")
	}
	s.checkOnce()
	s.checkOnce()
	if attempts.Load() != 2 {
		t.Fatalf("restart attempts = %d, want 2", attempts.Load())
	}
	if !s.Started() {
		t.Fatal("failed restart must not clear the started flag")
	}
}

func TestScheduleHealthCheckRestartsDeadMotion(t *testing.T) {
	s, _, launches := newTestSupervisor(t, true)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	alive := atomic.Bool{}
	alive.Store(true)
	s.alive = func() bool { return alive.Load() }

	s.ScheduleHealthCheck(10 * time.Millisecond)
	defer s.StopHealthCheck()

	// simulate the daemon dying; the loop must bring it back
	s.mu.Lock()
	s.state = StateNotStarted
	s.mu.Unlock()
	alive.Store(false)

	waitUntil(t, 2*time.Second, func() bool { return launches.Load() >= 2 })
}

func TestSlowHealthChecksDoNotOverlap(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var checks atomic.Int32
	// each check takes far longer than the interval; the loop must re-arm
	// only after a pass completes instead of firing at a fixed rate
	s.alive = func() bool {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		checks.Add(1)
		return true
	}

	s.ScheduleHealthCheck(5 * time.Millisecond)
	waitUntil(t, 2*time.Second, func() bool { return checks.Load() >= 3 })
	s.StopHealthCheck()

	if overlapped.Load() {
		t.Fatal("health checks ran concurrently")
	}
}

func TestStopHealthCheckHaltsLoop(t *testing.T) {
	s, _, launches := newTestSupervisor(t, true)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.ScheduleHealthCheck(5 * time.Millisecond)
	s.StopHealthCheck()
	s.alive = func() bool { return false }
	s.mu.Lock()
	s.state = StateNotStarted
	s.mu.Unlock()

	base := launches.Load()
	time.Sleep(50 * time.Millisecond)
	if launches.Load() != base {
		t.Fatal("health check still running after StopHealthCheck")
	}
}

func TestScheduleHealthCheckDisabled(t *testing.T) {
	s, _, _ := newTestSupervisor(t, true)
	s.ScheduleHealthCheck(0)
	// nothing armed, StopHealthCheck must not block
	s.StopHealthCheck()
}
