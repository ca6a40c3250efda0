package mounts

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cameye/cameye/internal/config"
)

// FindMountCIFS locates the mount.cifs helper on PATH. Its absence is fatal
// at startup when shares are configured.
func FindMountCIFS() (string, error) {
	return exec.LookPath("mount.cifs")
}

// cifsMounter shells out to the CIFS mount helpers. Mount and umount child
// processes are reaped by the service signal router.
type cifsMounter struct {
	logger *slog.Logger
}

func (c cifsMounter) Mount(share config.ShareConfig, mountPoint string) error {
	if err := os.MkdirAll(mountPoint, 0o750); err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}
	opts := "soft,noatime"
	if share.Username != "" {
		opts += ",username=" + share.Username
		if share.Password != "" {
			opts += ",password=" + share.Password
		}
	} else {
		opts += ",guest"
	}
	source := fmt.Sprintf("//%s/%s", share.Server, share.Share)
	// #nosec G204 -- arguments come from the server's own config file
	cmd := exec.Command("mount.cifs", source, mountPoint, "-o", opts)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount.cifs %s: %w: %s", source, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c cifsMounter) Unmount(mountPoint string) error {
	// #nosec G204 -- mount point is derived from config, not user input
	cmd := exec.Command("umount", mountPoint)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount %s: %w: %s", mountPoint, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Mounted parses /proc/mounts for cifs entries under the managed root. The
// root is recovered from the mount point prefix at call sites; the mounter
// itself reports every cifs mount and Manager filters by prefix.
func (c cifsMounter) Mounted() ([]string, error) {
	b, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil, err
	}
	var points []string
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if fields[2] == "cifs" {
			points = append(points, filepath.Clean(fields[1]))
		}
	}
	return points, nil
}
