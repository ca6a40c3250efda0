//go:build windows

package main

import "os/exec"

// Windows has no sessions to detach from; the child just inherits nothing.
func configureDaemonAttrs(_ *exec.Cmd) {}
