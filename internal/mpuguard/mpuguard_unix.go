//go:build unix

package mpuguard

import (
	"sync"

	"zoneheap/internal/mmap"
)

// UnixGuard backs Protect/Unprotect with real mprotect calls against the
// caller's anonymous-mmap arena. Unlike a Cortex-M MPU, which has a small
// fixed number of hardware regions, mprotect itself has no such limit —
// so UnixGuard enforces maxRegions itself, to keep the same scarce-slot
// contract the original firmware's MPU imposed.
type UnixGuard struct {
	mu         sync.Mutex
	regions    map[int][]byte
	next       int
	maxRegions int // 0 means unlimited
}

// NewUnixGuard returns a Guard that really mprotects pages. maxRegions caps
// how many regions may be simultaneously protected, mirroring a hardware
// MPU's fixed slot count; 0 means unlimited.
func NewUnixGuard(maxRegions int) *UnixGuard {
	return &UnixGuard{regions: make(map[int][]byte), maxRegions: maxRegions}
}

// New returns the default Guard for this build: a real mprotect-backed
// UnixGuard capped at maxRegions simultaneously protected regions (0 means
// unlimited).
func New(maxRegions int) Guard { return NewUnixGuard(maxRegions) }

func (g *UnixGuard) Available() bool { return true }

// Protect marks region read-only. region must be page-aligned and a
// multiple of the system page size, since mprotect operates on whole
// pages; callers that slice a zone arena at page boundaries already
// satisfy this. Protect fails once maxRegions are already held, just as
// the embedded MPU runs out of hardware slots.
func (g *UnixGuard) Protect(region []byte) (int, bool) {
	if len(region) == 0 {
		return -1, false
	}
	g.mu.Lock()
	if g.maxRegions > 0 && len(g.regions) >= g.maxRegions {
		g.mu.Unlock()
		return -1, false
	}
	g.mu.Unlock()
	if err := mmap.Protect(region); err != nil {
		return -1, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	handle := g.next
	g.next++
	g.regions[handle] = region
	return handle, true
}

// Unprotect restores read-write access to the region behind handle. A
// handle not currently held is a no-op, mirroring the original's tolerance
// of double-unprotect during shutdown.
func (g *UnixGuard) Unprotect(handle int) {
	g.mu.Lock()
	region, ok := g.regions[handle]
	if ok {
		delete(g.regions, handle)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	_ = mmap.Unprotect(region)
}
