//go:build !windows

package pidfile

import (
	"errors"
	"syscall"
)

// pidAlive probes liveness with a zero-effect signal. EPERM means the process
// exists but belongs to another user; it still counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
