// Package camera is the read-only workload registry consulted by the
// supervision core: which cameras exist, where their media goes, and whether
// any of them needs the motion daemon at all.
package camera

import (
	"sort"
	"sync"

	"github.com/cameye/cameye/internal/config"
)

// Camera is one configured workload.
type Camera struct {
	ID           int
	Name         string
	Enabled      bool
	Local        bool // v4l2 cameras are handled by the local motion daemon
	TargetDir    string
	PreserveDays int
}

// Registry answers workload queries. It is immutable after construction, so
// all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	cameras map[int]Camera
}

// NewRegistry builds a registry from config entries.
func NewRegistry(cfgs []config.CameraConfig) *Registry {
	m := make(map[int]Camera, len(cfgs))
	for _, cc := range cfgs {
		m[cc.ID] = Camera{
			ID:           cc.ID,
			Name:         cc.Name,
			Enabled:      cc.Enabled,
			Local:        cc.Proto == "v4l2",
			TargetDir:    cc.TargetDir,
			PreserveDays: cc.PreserveDays,
		}
	}
	return &Registry{cameras: m}
}

// IDs returns all camera ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.cameras))
	for id := range r.cameras {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Get returns the camera with the given id.
func (r *Registry) Get(id int) (Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cameras[id]
	return c, ok
}

// TargetDir returns the media output directory for a camera, empty when the
// camera is unknown or has no directory configured.
func (r *Registry) TargetDir(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cameras[id].TargetDir
}

// AnyEnabledLocal reports whether at least one enabled camera requires the
// local motion daemon. The supervisor's start precondition.
func (r *Registry) AnyEnabledLocal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cameras {
		if c.Enabled && c.Local {
			return true
		}
	}
	return false
}
