//go:build !windows

package service

import (
	"syscall"

	"github.com/cameye/cameye/internal/mounts"
)

// writableDir reports whether the directory exists and is writable by the
// effective user.
func writableDir(path string) bool {
	return syscall.Access(path, 0x2 /* W_OK */) == nil
}

func findMountHelper() (string, error) { return mounts.FindMountCIFS() }

// signalProcess delivers the graceful terminate signal, or the kill signal
// when kill is set.
func signalProcess(pid int, kill bool) error {
	sig := syscall.SIGTERM
	if kill {
		sig = syscall.SIGKILL
	}
	return syscall.Kill(pid, sig)
}
