package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "cameye.pid")
	if err := Write(path, 12345); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "12345\n" {
		t.Fatalf("unexpected content %q", string(b))
	}
	pid, err := Read(path)
	if err != nil || pid != 12345 {
		t.Fatalf("Read = %d, %v", pid, err)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"words.pid":    "not a pid\n",
		"negative.pid": "-4\n",
		"zero.pid":     "0\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := Read(path); err == nil {
			t.Fatalf("Read(%q) accepted garbage", content)
		}
	}
	if _, err := Read(filepath.Join(dir, "missing.pid")); err == nil {
		t.Fatal("Read on missing file should error")
	}
}

func TestAlivePidOwnProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.pid")
	if err := Write(path, os.Getpid()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pid, ok := AlivePid(path)
	if !ok || pid != os.Getpid() {
		t.Fatalf("AlivePid = %d, %v; want own pid alive", pid, ok)
	}
}

func TestAlivePidStaleProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Wait() // reaped, pid now stale

	path := filepath.Join(t.TempDir(), "stale.pid")
	if err := Write(path, pid); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := AlivePid(path); ok {
		t.Fatalf("AlivePid reported dead pid %d alive", pid)
	}
}

func TestAlivePidMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	if _, ok := AlivePid(filepath.Join(dir, "nope.pid")); ok {
		t.Fatal("missing file should not be alive")
	}
	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("??\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, ok := AlivePid(bad); ok {
		t.Fatal("corrupt file should not be alive")
	}
}

func TestRemoveMissingIsNoError(t *testing.T) {
	if err := Remove(filepath.Join(t.TempDir(), "absent.pid")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}
