//go:build windows

package service

import (
	"errors"
	"os"
)

func writableDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func findMountHelper() (string, error) {
	return "", errors.New("cifs mounts are not supported on windows")
}

func signalProcess(pid int, kill bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
