//go:build windows

package service

import "os"

// Windows has no SIGCHLD; child handles are reaped by their own Wait calls.
func childExitChan() <-chan os.Signal { return nil }

func reaped(int) bool { return true }
