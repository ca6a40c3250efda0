//go:build windows

package pidfile

import "os"

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// FindProcess always succeeds on Windows only when the handle can be
	// opened; that is the closest analogue to kill(pid, 0).
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
