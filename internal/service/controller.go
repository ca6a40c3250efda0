// Package service composes the supervision core: it owns the signal router,
// the motion supervisor, and every background subsystem, and sequences their
// startup and shutdown. One Controller is constructed per process; nothing in
// here lives in package globals.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cameye/cameye/internal/camera"
	"github.com/cameye/cameye/internal/cleanup"
	"github.com/cameye/cameye/internal/config"
	"github.com/cameye/cameye/internal/metrics"
	"github.com/cameye/cameye/internal/mjpg"
	"github.com/cameye/cameye/internal/motion"
	"github.com/cameye/cameye/internal/mounts"
	"github.com/cameye/cameye/internal/server"
	"github.com/cameye/cameye/internal/tasks"
	"github.com/cameye/cameye/internal/wsswitch"
)

// Subsystem is an independently startable unit of background functionality.
// Start failures are isolated by the orchestrator; Stop must be idempotent.
type Subsystem interface {
	Start() error
	Stop() error
	Running() bool
}

// step is one recorded startup step, replayed in reverse on shutdown.
type step struct {
	name string
	stop func() error
}

// Controller is the top-level service: it wires the subsystems together and
// runs the start/stop orchestration.
type Controller struct {
	cfg     *config.Config
	logger  *slog.Logger
	version string

	cameras  *camera.Registry
	motion   *motion.Supervisor
	mounts   *mounts.Manager
	cleanup  *cleanup.Sweeper
	wsswitch *wsswitch.Switch
	mjpg     *mjpg.Pool
	tasks    *tasks.Scheduler
	http     *server.Server
	signals  *Router

	taskHandlers map[string]tasks.Handler

	// startup steps recorded in order; shutdown walks them in reverse
	started []step
}

// New wires a controller from config. No subsystem is started.
func New(cfg *config.Config, version string, logger *slog.Logger) *Controller {
	c := &Controller{
		cfg:          cfg,
		logger:       logger,
		version:      version,
		cameras:      camera.NewRegistry(cfg.Cameras),
		signals:      NewRouter(logger),
		taskHandlers: make(map[string]tasks.Handler),
	}
	c.motion = motion.New(motion.Config{
		Binary:     cfg.Motion.Binary,
		ConfigFile: cfg.Motion.ConfigFile,
		PIDFile:    cfg.MotionPidFilePath(),
	}, c.cameras, logger)
	c.mounts = mounts.NewManager(filepath.Join(cfg.MediaDir, "mounts"), cfg.Mounts, logger)
	c.cleanup = cleanup.NewSweeper(c.cameras, cfg.Cleanup.Interval, logger)
	c.wsswitch = wsswitch.New(
		motionDetectionProber{sup: c.motion, cameras: c.cameras},
		c.cameras.IDs,
		cfg.Motion.CheckInterval,
		logger,
	)
	c.mjpg = mjpg.NewPool(cfg.MJPG.ClientTimeout, logger)
	c.http = server.New(cfg.HTTPAddr(), version, c.healthSnapshot, logger)
	return c
}

// Cameras exposes the read-only workload registry.
func (c *Controller) Cameras() *camera.Registry { return c.cameras }

// MJPGPool exposes the streaming-client pool so stream handlers outside this
// core can register clients.
func (c *Controller) MJPGPool() *mjpg.Pool { return c.mjpg }

// RegisterTaskHandler binds a named task handler. Must be called before Run.
func (c *Controller) RegisterTaskHandler(name string, h tasks.Handler) {
	c.taskHandlers[name] = h
}

// Run starts every subsystem in dependency order, blocks until an interrupt
// or terminate signal cancels the context, and then shuts everything down in
// reverse order. Only a fatal requirement failure is returned as an error.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.signals.Install(cancel)

	c.logger.Info("hello! this is cameye", "version", c.version)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		c.logger.Warn("failed to register metrics", "error", err)
	}

	if err := c.checkRequirements(); err != nil {
		return err
	}
	c.ensureMediaDirs()

	c.startMotionGated()

	if c.cleanup.Enabled() {
		c.startStep("cleanup", c.cleanup)
	}
	c.startStep("wsswitch", c.wsswitch)
	c.startTasks()
	if c.mjpg.Enabled() {
		c.startStep("mjpg", c.mjpg)
	}
	if c.mounts.Enabled() {
		c.startStep("mounts", c.mounts)
	}
	c.startStep("http", c.http)

	c.motion.ScheduleHealthCheck(c.cfg.Motion.CheckInterval)

	c.logger.Info("server started")
	<-ctx.Done()
	c.logger.Info("server stopped")

	c.stopAll()
	c.logger.Info("goodbye!")
	return nil
}

// startMotionGated decides whether motion starts now. A mount change gates
// the start: motion must not begin recording to a share that was just
// remounted underneath it, so with shares configured but nothing newly
// mounted the launch is handed to the health check instead. The stop step is
// recorded up front either way, covering runs the check starts later.
func (c *Controller) startMotionGated() {
	c.record("motion", func() error {
		if !c.motion.Started() && !c.motion.Running() {
			return nil
		}
		return c.motion.Stop()
	})
	if c.mounts.Enabled() {
		if _, didMount := c.mounts.Reconcile(); !didMount {
			c.motion.ScheduleStart()
			return
		}
	}
	c.startMotion()
}

// startMotion starts the supervised daemon. Launch failures are recoverable:
// they are logged, the remaining subsystems still come up, and the start
// request stays pending so the health check retries the launch.
func (c *Controller) startMotion() {
	if err := c.motion.Start(); err != nil {
		c.logger.Error("failed to start motion", "error", err)
	}
}

// startTasks opens the task store and starts the scheduler. Store failures
// disable the scheduler for this run without aborting startup.
func (c *Controller) startTasks() {
	c.logger.Info("starting tasks")
	store, err := tasks.OpenStore(c.cfg.Tasks.DBPath)
	if err != nil {
		c.logger.Error("failed to open task store", "path", c.cfg.Tasks.DBPath, "error", err)
		return
	}
	c.tasks = tasks.NewScheduler(store, c.cfg.Tasks.PollInterval, c.logger)
	for name, h := range c.taskHandlers {
		c.tasks.Register(name, h)
	}
	if err := c.tasks.Start(); err != nil {
		c.logger.Error("failed to start tasks", "error", err)
		return
	}
	metrics.SetSubsystemUp("tasks", true)
	c.record("tasks", c.tasks.Stop)
	c.logger.Info("tasks started")
}

// startStep starts one subsystem with fault isolation and records its stop.
func (c *Controller) startStep(name string, sub Subsystem) {
	c.logger.Info("starting " + name)
	if err := sub.Start(); err != nil {
		c.logger.Error("failed to start "+name, "error", err)
		return
	}
	metrics.SetSubsystemUp(name, true)
	c.record(name, sub.Stop)
	c.logger.Info(name + " started")
}

func (c *Controller) record(name string, stop func() error) {
	c.started = append(c.started, step{name: name, stop: stop})
}

// stopAll shuts down in exactly the reverse of the recorded startup order.
// Every step runs even when an earlier one fails; errors become log entries.
func (c *Controller) stopAll() {
	c.motion.StopHealthCheck()
	runStopSteps(c.logger, c.started)
	c.started = nil
}

// runStopSteps executes stop steps last-started-first, each fault-isolated.
func runStopSteps(logger *slog.Logger, started []step) {
	for i := len(started) - 1; i >= 0; i-- {
		st := started[i]
		logger.Info("stopping " + st.name)
		if err := st.stop(); err != nil {
			logger.Error("failed to stop "+st.name, "error", err)
		} else {
			logger.Info(st.name + " stopped")
		}
		metrics.SetSubsystemUp(st.name, false)
	}
}

// healthSnapshot reports per-subsystem state for the /health endpoint.
func (c *Controller) healthSnapshot() map[string]string {
	snap := map[string]string{
		"motion":   string(c.motion.State()),
		"cleanup":  runningWord(c.cleanup.Running()),
		"wsswitch": runningWord(c.wsswitch.Running()),
		"mjpg":     runningWord(c.mjpg.Running()),
		"mounts":   runningWord(c.mounts.Running()),
	}
	if c.tasks != nil {
		snap["tasks"] = runningWord(c.tasks.Running())
	} else {
		snap["tasks"] = "stopped"
	}
	return snap
}

func runningWord(r bool) string {
	if r {
		return "running"
	}
	return "stopped"
}

// motionDetectionProber is the coarse default detection probe: a camera
// counts as detecting while it is enabled, local, and motion is alive. The
// camera-control layer outside this core replaces it with a per-camera probe
// against motion's control socket.
type motionDetectionProber struct {
	sup     *motion.Supervisor
	cameras *camera.Registry
}

func (p motionDetectionProber) Detecting(cameraID int) (bool, error) {
	cam, ok := p.cameras.Get(cameraID)
	if !ok {
		return false, fmt.Errorf("unknown camera %d", cameraID)
	}
	return cam.Enabled && cam.Local && p.sup.Running(), nil
}
