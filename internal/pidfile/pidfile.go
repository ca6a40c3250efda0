// Package pidfile tracks the server's process identity on disk. The file
// holds the decimal pid followed by a newline; a missing or unparseable file
// means "not running". AlivePid is the sole source of truth for singleton
// decisions: file presence alone is never trusted.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Write records pid as the sole content of the file at path, creating or
// truncating it.
func Write(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	// #nosec 302
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(strconv.Itoa(pid) + "\n")
	return err
}

// Read returns the pid recorded at path. Any I/O or parse failure is
// returned as an error; callers treat it as "not running".
func Read(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(b))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d in %s", pid, path)
	}
	return pid, nil
}

// AlivePid returns the recorded pid only when it refers to a process that can
// be signaled. A stale pid, a missing file, or corrupt content all yield
// (0, false).
func AlivePid(path string) (int, bool) {
	pid, err := Read(path)
	if err != nil {
		return 0, false
	}
	if !pidAlive(pid) {
		return 0, false
	}
	return pid, true
}

// Alive reports whether pid refers to a process that can be signaled.
func Alive(pid int) bool { return pidAlive(pid) }

// Remove deletes the pid file. Missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
