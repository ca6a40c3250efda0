// Package mounts converges CIFS share mounts with the configured set. The
// orchestrator consults Reconcile's result to decide whether the motion
// daemon must be (re)started around a mount change, and runs the background
// remount loop as its own subsystem.
package mounts

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cameye/cameye/internal/config"
)

// Mounter abstracts the OS mount operations so the reconcile logic can be
// exercised without privileges. The default implementation shells out to
// mount.cifs/umount.
type Mounter interface {
	Mount(share config.ShareConfig, mountPoint string) error
	Unmount(mountPoint string) error
	Mounted() ([]string, error) // currently mounted points under the managed root
}

// Manager owns the desired share set and the remount loop.
type Manager struct {
	mu      sync.Mutex
	root    string // all managed mount points live under root
	shares  []config.ShareConfig
	mounter Mounter
	logger  *slog.Logger

	quit chan struct{}
	done chan struct{}

	interval time.Duration
}

// NewManager builds a mount manager rooted at root (e.g. /media/cameye).
func NewManager(root string, cfg config.MountsConfig, logger *slog.Logger) *Manager {
	return &Manager{
		root:     root,
		shares:   cfg.Shares,
		mounter:  cifsMounter{logger: logger},
		logger:   logger,
		interval: cfg.RemountInterval,
	}
}

// SetMounter replaces the OS mounter; used by tests.
func (m *Manager) SetMounter(mt Mounter) {
	m.mu.Lock()
	m.mounter = mt
	m.mu.Unlock()
}

// Enabled reports whether any shares are configured at all.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shares) > 0
}

// MountPoint derives the managed mount point for a share.
func (m *Manager) MountPoint(share config.ShareConfig) string {
	server := strings.ReplaceAll(share.Server, "/", "_")
	name := strings.ReplaceAll(share.Share, "/", "_")
	return filepath.Join(m.root, server+"_"+name)
}

// Reconcile unmounts stale mount points and mounts missing shares, returning
// whether anything was unmounted or mounted. Per-share failures are logged
// and do not abort the remaining work.
func (m *Manager) Reconcile() (didUnmount, didMount bool) {
	m.mu.Lock()
	shares := m.shares
	mounter := m.mounter
	m.mu.Unlock()

	desired := make(map[string]config.ShareConfig, len(shares))
	for _, sh := range shares {
		desired[m.MountPoint(sh)] = sh
	}

	current, err := mounter.Mounted()
	if err != nil {
		m.logger.Error("failed to list mounts", "error", err)
		current = nil
	}
	mounted := make(map[string]struct{}, len(current))
	for _, mp := range current {
		// only mount points under the managed root belong to us
		if !strings.HasPrefix(mp, m.root+string(filepath.Separator)) {
			continue
		}
		mounted[mp] = struct{}{}
		if _, want := desired[mp]; want {
			continue
		}
		if err := mounter.Unmount(mp); err != nil {
			m.logger.Error("failed to unmount share", "mount_point", mp, "error", err)
			continue
		}
		m.logger.Info("unmounted stale share", "mount_point", mp)
		didUnmount = true
	}
	for mp, sh := range desired {
		if _, ok := mounted[mp]; ok {
			continue
		}
		if err := mounter.Mount(sh, mp); err != nil {
			m.logger.Error("failed to mount share",
				"server", sh.Server, "share", sh.Share, "error", err)
			continue
		}
		m.logger.Info("mounted share", "server", sh.Server, "share", sh.Share, "mount_point", mp)
		didMount = true
	}
	return didUnmount, didMount
}

// Start launches the background remount loop.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.shares) == 0 {
		return nil
	}
	if m.quit != nil {
		return fmt.Errorf("mount loop already started")
	}
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.quit, m.done)
	return nil
}

func (m *Manager) loop(quit, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-quit:
			return
		case <-t.C:
			m.Reconcile()
		}
	}
}

// Stop cancels the remount loop and waits for it to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	quit, done := m.quit, m.done
	m.quit, m.done = nil, nil
	m.mu.Unlock()
	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return nil
}

// Running reports whether the remount loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quit != nil
}
