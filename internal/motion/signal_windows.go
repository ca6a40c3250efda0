//go:build windows

package motion

import "os"

func terminatePid(pid int, kill bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	defer func() { _ = p.Release() }()
	// Windows has no graceful signal; both paths kill.
	return p.Kill()
}
