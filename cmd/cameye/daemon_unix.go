//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonAttrs detaches the child into its own session so closing
// the controlling terminal cannot signal it.
func configureDaemonAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
