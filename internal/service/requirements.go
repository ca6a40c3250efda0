package service

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrRequirement marks a fatal startup precondition failure. The CLI maps it
// to its own exit status; no partial service is left listening.
var ErrRequirement = errors.New("startup requirement not met")

// checkRequirements verifies the environment before any subsystem starts.
// Unwritable core directories, missing privileges for configured shares, and
// a missing mount helper are fatal; missing optional tools are only logged.
func (c *Controller) checkRequirements() error {
	for _, d := range []struct{ name, path string }{
		{"config", c.cfg.ConfDir},
		{"run", c.cfg.RunDir},
		{"log", c.cfg.LogDir},
		{"media", c.cfg.MediaDir},
	} {
		if d.path == "" {
			continue
		}
		if !writableDir(d.path) {
			return fmt.Errorf("%w: %s directory %q does not exist or is not writable",
				ErrRequirement, d.name, d.path)
		}
	}

	if len(c.cfg.Mounts.Shares) > 0 {
		if os.Geteuid() != 0 {
			return fmt.Errorf("%w: network shares require root privileges", ErrRequirement)
		}
		if _, err := findMountHelper(); err != nil {
			return fmt.Errorf("%w: network shares configured but mount.cifs not found", ErrRequirement)
		}
	}

	hasMotion := lookPathOK(c.cfg.Motion.Binary)
	hasFFmpeg := lookPathOK("ffmpeg")
	hasV4L2 := lookPathOK("v4l2-ctl")

	if !hasMotion {
		c.logger.Info("motion not installed")
	}
	switch {
	case !hasFFmpeg && hasMotion:
		c.logger.Warn("you have motion installed, but no ffmpeg")
	case !hasFFmpeg:
		c.logger.Info("ffmpeg not installed")
	}
	switch {
	case !hasV4L2 && hasMotion:
		c.logger.Warn("you have motion installed, but no v4l-utils")
	case !hasV4L2:
		c.logger.Info("v4l-utils not installed")
	}
	return nil
}

func lookPathOK(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ensureMediaDirs creates each camera's output directory. A per-directory
// failure skips that camera and the rest proceed.
func (c *Controller) ensureMediaDirs() {
	for _, id := range c.cameras.IDs() {
		dir := c.cameras.TargetDir(id)
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			c.logger.Error("failed to create media folder for camera",
				"camera", id, "dir", dir, "error", err)
		}
	}
}
