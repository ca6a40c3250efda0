package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cameye/cameye/internal/config"
)

// daemonEnvVar marks the re-executed child so it takes the foreground code
// path with file logging instead of forking again.
const daemonEnvVar = "CAMEYE_DAEMONIZED"

func inDaemon() bool { return os.Getenv(daemonEnvVar) == "1" }

// startCommand is a seam so tests can intercept the spawn.
var startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }

// daemonize re-executes the current binary detached in its own session and
// returns the child pid. The child writes the pid file itself once it has
// claimed the run directory; the parent only reports the pid and exits.
func daemonize(cfg *config.Config) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	// #nosec G204 -- re-executing ourselves with our own filtered args
	cmd := exec.Command(executable, stripBackgroundFlags(os.Args[1:])...)
	cmd.Env = append(os.Environ(), daemonEnvVar+"=1")
	configureDaemonAttrs(cmd)
	cmd.Stdin = nil

	// Panics and anything else written to raw stderr land in the log file.
	// The child's structured logging opens the same file through its rotating
	// writer; an inherited *os.File survives the parent exiting.
	if cfg.LogDir != "" {
		logF, ferr := os.OpenFile(filepath.Join(cfg.LogDir, "cameye.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr == nil {
			defer func() { _ = logF.Close() }()
			cmd.Stdout = logF
			cmd.Stderr = logF
		}
	}

	if err := startCommand(cmd); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// stripBackgroundFlags removes -b/--background so the child runs foreground.
func stripBackgroundFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "-b" || a == "--background" {
			continue
		}
		out = append(out, a)
	}
	return out
}
