package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cameye/cameye/internal/config"
	"github.com/cameye/cameye/internal/logger"
	"github.com/cameye/cameye/internal/service"
	"github.com/spf13/cobra"
)

// version is stamped via -ldflags at release time.
var version = "dev"

// Exit statuses. Init scripts and supervisors key off these, so they are part
// of the CLI contract.
const (
	exitFailure        = 1
	exitRequirement    = 2
	exitAlreadyRunning = 3
	exitNotRunning     = 4
	exitSpawnFailure   = 5
	exitForcedKill     = 6
)

// errSpawn marks a failure to fork the background child.
var errSpawn = errors.New("failed to spawn background process")

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

func exitStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrRequirement):
		return exitRequirement
	case errors.Is(err, service.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.Is(err, service.ErrNotRunning):
		return exitNotRunning
	case errors.Is(err, errSpawn):
		return exitSpawnFailure
	case errors.Is(err, service.ErrForcedKill):
		return exitForcedKill
	default:
		return exitFailure
	}
}

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "cameye",
		Short:         "cameye is the camera frontend server core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c",
		"/etc/cameye/cameye.toml", "path to the TOML config file")
	root.AddCommand(
		createStartCommand(flags),
		createStopCommand(flags),
		createStatusCommand(flags),
		createVersionCommand(),
	)
	return root
}

func createStartCommand(flags *globalFlags) *cobra.Command {
	var background bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", flags.ConfigPath, err)
			}
			return runStart(cfg, background)
		},
	}
	cmd.Flags().BoolVarP(&background, "background", "b", false,
		"detach from the terminal and run in the background")
	return cmd
}

func runStart(cfg *config.Config, background bool) error {
	if background && !inDaemon() {
		// friendlier than letting the child die with the same error
		if pid, err := service.RunningPid(cfg.PidFilePath()); err == nil {
			return fmt.Errorf("%w (pid %d)", service.ErrAlreadyRunning, pid)
		}
		pid, err := daemonize(cfg)
		if err != nil {
			return fmt.Errorf("%w: %v", errSpawn, err)
		}
		fmt.Printf("server started with pid %d\n", pid)
		return nil
	}

	logCfg := logger.Config{
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if inDaemon() {
		// detached: stderr points at the null device, log to a file instead
		logCfg.Dir = cfg.LogDir
	}
	log := logger.New(logCfg)
	slog.SetDefault(log)

	if err := service.AcquirePidFile(cfg.PidFilePath()); err != nil {
		return err
	}
	defer service.ReleasePidFile(cfg.PidFilePath())

	ctl := service.New(cfg, version, log)
	return ctl.Run(context.Background())
}

func createStopCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", flags.ConfigPath, err)
			}
			log := logger.New(logger.Config{Level: cfg.Log.Level})
			return service.StopDaemon(cfg.PidFilePath(), service.StopOptions{}, log)
		},
	}
}

func createStatusCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the server is running",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", flags.ConfigPath, err)
			}
			pid, err := service.RunningPid(cfg.PidFilePath())
			if err != nil {
				return err
			}
			fmt.Printf("server is running (pid %d)\n", pid)
			return nil
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("cameye " + version)
		},
	}
}
