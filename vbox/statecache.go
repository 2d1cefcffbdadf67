package vbox

import (
	"context"

	"github.com/vboxwrapper/vboxwrapper/lock"
	"github.com/vboxwrapper/vboxwrapper/lock/flock"
	storejson "github.com/vboxwrapper/vboxwrapper/storage/json"
	"github.com/vboxwrapper/vboxwrapper/types"
)

// cachedFacts is the ephemeral, rebuildable record persisted between
// process invocations for the single VM in a slot: values the hypervisor
// does not expose cheaply enough to re-derive on every call. None of this
// is authoritative; a missing file just means these fields start blank
// until registration, GetVMProcessID or a crash-observing Poll sets them
// again. A file that does not parse as JSON makes Load and Save return
// an error.
type cachedFacts struct {
	PFHostPort        int    `json:"pf_host_port"`
	RDHostPort        int    `json:"rd_host_port"`
	VMPID             int    `json:"vm_pid"`
	VirtualBoxVersion string `json:"virtualbox_version"`
	HWVirtFailed      bool   `json:"hwvirt_failed"`
}

// StateCache wraps the generic JSON store with the VM-runtime-specific
// load/save pair the Supervisor uses to seed and persist a RuntimeState
// across process invocations.
type StateCache struct {
	store *storejson.Store[cachedFacts]
}

// NewStateCache opens the cache file at filePath, guarded by a flock at
// lockPath.
func NewStateCache(filePath, lockPath string) *StateCache {
	return &StateCache{store: storejson.New[cachedFacts](filePath, flock.New(lockPath))}
}

// NewStateCacheWithLocker is NewStateCache for callers that already manage
// their own Locker (e.g. shared with the floppy channel's lock file).
func NewStateCacheWithLocker(filePath string, locker lock.Locker) *StateCache {
	return &StateCache{store: storejson.New[cachedFacts](filePath, locker)}
}

// Load seeds rt's cache-backed fields from disk.
func (c *StateCache) Load(ctx context.Context, rt *types.RuntimeState) error {
	return c.store.With(ctx, func(facts *cachedFacts) error {
		rt.PFHostPort = facts.PFHostPort
		rt.RDHostPort = facts.RDHostPort
		rt.VMPID = facts.VMPID
		rt.VirtualBoxVersion = facts.VirtualBoxVersion
		rt.HWVirtFailed = facts.HWVirtFailed
		return nil
	})
}

// Save persists rt's cache-backed fields to disk.
func (c *StateCache) Save(ctx context.Context, rt *types.RuntimeState) error {
	return c.store.Update(ctx, func(facts *cachedFacts) error {
		facts.PFHostPort = rt.PFHostPort
		facts.RDHostPort = rt.RDHostPort
		facts.VMPID = rt.VMPID
		facts.VirtualBoxVersion = rt.VirtualBoxVersion
		facts.HWVirtFailed = rt.HWVirtFailed
		return nil
	})
}
