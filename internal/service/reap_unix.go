//go:build !windows

package service

import (
	"os"
	"os/signal"
	"syscall"
)

func childExitChan() <-chan os.Signal {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGCHLD)
	return ch
}

// reaped waits for one specific pid without blocking. True once the exit
// status has been collected, or the pid is no longer ours to wait for, so
// the caller can forget it. Never Wait4(-1): that would consume the exit
// status of children managed through os/exec.
func reaped(pid int) bool {
	var ws syscall.WaitStatus
	got, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
	return err != nil || got == pid
}
