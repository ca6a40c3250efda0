//go:build !windows

package motion

import "syscall"

// terminatePid sends SIGTERM, or SIGKILL when kill is set.
func terminatePid(pid int, kill bool) error {
	sig := syscall.SIGTERM
	if kill {
		sig = syscall.SIGKILL
	}
	return syscall.Kill(pid, sig)
}
