// Package router implements the multi-zone allocation policy: which
// zone(s) an Allocate/Calloc call tries, in what order, and the single
// process-wide lock that serializes every public operation against the
// zones underneath it.
package router

import (
	"sync"
	"unsafe"

	"zoneheap/internal/errs"
	"zoneheap/internal/mpuguard"
	"zoneheap/internal/pageallocator"
	"zoneheap/internal/stats"
	"zoneheap/internal/telemetry"
)

// Zone selects which region(s) an allocation should prefer.
type Zone uint8

const (
	// ZoneAny tries zone 0 then falls back through every other zone.
	ZoneAny Zone = iota
	// ZoneFast allocates only from zone 0; no fallback.
	ZoneFast
	// ZoneSlow allocates only from zone 1; no fallback.
	ZoneSlow
	// ZoneFastPrefer tries zone 0 first, then zone 1, then the rest.
	ZoneFastPrefer
	// ZoneSlowPrefer tries zone 1 first, then zone 0, then the rest.
	ZoneSlowPrefer
)

func (z Zone) String() string {
	switch z {
	case ZoneAny:
		return "any"
	case ZoneFast:
		return "fast"
	case ZoneSlow:
		return "slow"
	case ZoneFastPrefer:
		return "fast-prefer"
	case ZoneSlowPrefer:
		return "slow-prefer"
	default:
		return "unknown"
	}
}

// Region describes one contiguous span of memory to be brought under
// management as a zone, in the order DefineHeapRegions should activate
// them.
type Region struct {
	Start []byte
}

// Options configures how a Router builds each underlying zone.
type Options struct {
	PageSize             int
	MaxZones             int
	MaxPagesPerZone      int
	QuarantineCapacity   int
	FillOnFree           bool
	ClearOnEvict         bool
	QuarantineCheckLevel int
	CheckAllAllocated    bool
	EnableMPU            bool

	Guard mpuguard.Guard
	Log   *telemetry.Logger
}

// route is the resolved primary/secondary/fallback order for one Zone
// selection, mirroring the original's ZoneRoute.
type route struct {
	primary      int
	secondary    int
	trySecondary bool
}

// resolveRoute maps a Zone selection to its primary and secondary zone.
// trySecondary also marks whether fallback is permitted at all: ZoneFast and
// ZoneSlow report false and never leave their primary zone.
func resolveRoute(z Zone) route {
	switch z {
	case ZoneFast:
		return route{primary: 0, secondary: 0, trySecondary: false}
	case ZoneSlow:
		return route{primary: 1, secondary: 1, trySecondary: false}
	case ZoneFastPrefer:
		return route{primary: 0, secondary: 1, trySecondary: true}
	case ZoneSlowPrefer:
		return route{primary: 1, secondary: 0, trySecondary: true}
	case ZoneAny:
		fallthrough
	default:
		return route{primary: 0, secondary: 1, trySecondary: true}
	}
}

// Router coordinates a fixed set of pageallocator.Zone instances behind one
// mutex. No component underneath it does any synchronization of its own;
// every public method here holds opMu for its full duration, with exactly
// one entry and one exit point.
//
// The zero value is a valid, uninitialized Router: every method below is
// safe to call before DefineHeapRegions, returning a reportable error or
// zero value rather than touching nil state.
type Router struct {
	opMu sync.Mutex

	opts    Options
	zones   []*pageallocator.Zone
	current Zone

	initialized bool
}

// DefineHeapRegions activates a zone per entry in regions, in order, up to
// opts.MaxZones, and stores opts for every zone it builds. It replaces any
// previously active zones. Returns ErrBadArgument for an empty region
// list, ErrTooManyZones if regions exceeds opts.MaxZones, or whatever
// error the first failing zone initialization produced.
func (r *Router) DefineHeapRegions(regions []Region, opts Options) error {
	if len(regions) == 0 {
		return errs.ErrBadArgument
	}
	if len(regions) > opts.MaxZones {
		return errs.ErrTooManyZones
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	zones := make([]*pageallocator.Zone, 0, len(regions))
	for i, reg := range regions {
		if len(reg.Start) == 0 {
			return errs.ErrBadArgument
		}
		maxBytes := opts.MaxPagesPerZone * opts.PageSize
		arena := reg.Start
		if maxBytes > 0 && len(arena) > maxBytes {
			arena = arena[:maxBytes]
		}
		z, err := pageallocator.New(arena, uint8(i), pageallocator.Options{
			PageSize:             opts.PageSize,
			QuarantineCapacity:   opts.QuarantineCapacity,
			FillOnFree:           opts.FillOnFree,
			ClearOnEvict:         opts.ClearOnEvict,
			QuarantineCheckLevel: opts.QuarantineCheckLevel,
			CheckAllAllocated:    opts.CheckAllAllocated,
			EnableMPU:            opts.EnableMPU,
			Guard:                opts.Guard,
			Log:                  opts.Log,
		})
		if err != nil {
			return err
		}
		zones = append(zones, z)
	}

	r.opts = opts
	r.zones = zones
	r.current = ZoneAny
	r.initialized = true
	return nil
}

// ResetState discards every active zone, returning the Router to its
// pre-DefineHeapRegions condition.
func (r *Router) ResetState() {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.zones = nil
	r.current = ZoneAny
	r.initialized = false
}

// IsInitialized reports whether DefineHeapRegions has successfully run.
func (r *Router) IsInitialized() bool {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.initialized
}

// SetZone changes which zone(s) subsequent Allocate/Calloc calls prefer.
func (r *Router) SetZone(z Zone) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.current = z
}

// GetZone returns the currently selected zone policy.
func (r *Router) GetZone() Zone {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.current
}

// ZoneCount returns the number of active zones.
func (r *Router) ZoneCount() int {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return len(r.zones)
}

// assertTaskContext is the hook point for an interrupt-context check
// (ARMv7-M's IPSR == 0 assertion in the original). Hosted Go has no
// interrupt context, so this is a documented no-op; a bare-metal build tag
// could replace it without changing any public signature.
func assertTaskContext() {}

// Allocate reserves requestedSize bytes from whichever zone the current
// policy resolves to, falling back through the remaining zones in index
// order if the preferred ones have no room. ZoneFast and ZoneSlow do not
// fall back.
func (r *Router) Allocate(requestedSize int) (unsafe.Pointer, error) {
	assertTaskContext()
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if !r.initialized {
		return nil, errs.ErrNotInitialized
	}
	rt := resolveRoute(r.current)
	return r.allocateWithRoute(rt, requestedSize)
}

func (r *Router) allocateWithRoute(rt route, requestedSize int) (unsafe.Pointer, error) {
	if rt.primary < len(r.zones) {
		if p, err := r.zones[rt.primary].Allocate(requestedSize); err == nil {
			return p, nil
		}
	}
	if rt.trySecondary && rt.secondary < len(r.zones) && rt.secondary != rt.primary {
		if p, err := r.zones[rt.secondary].Allocate(requestedSize); err == nil {
			return p, nil
		}
	}
	// ZoneFast/ZoneSlow permit no fallback: only their primary is tried.
	if !rt.trySecondary {
		return nil, errs.ErrNoSpace
	}
	// Fallback routes sweep the remaining zones in index order.
	for i := range r.zones {
		if i == rt.primary {
			continue
		}
		if rt.trySecondary && i == rt.secondary {
			continue
		}
		if p, err := r.zones[i].Allocate(requestedSize); err == nil {
			return p, nil
		}
	}
	return nil, errs.ErrNoSpace
}

// Calloc reserves num*elemSize zeroed bytes, trying only the current
// policy's primary zone and, if applicable, its secondary — it does not
// fall back through the remaining zones, mirroring the original's calloc
// semantics.
func (r *Router) Calloc(num, elemSize int) (unsafe.Pointer, error) {
	assertTaskContext()
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if !r.initialized {
		return nil, errs.ErrNotInitialized
	}
	rt := resolveRoute(r.current)

	if rt.primary < len(r.zones) {
		if p, err := r.zones[rt.primary].Calloc(num, elemSize); err == nil {
			return p, nil
		}
	}
	if rt.trySecondary && rt.secondary < len(r.zones) && rt.secondary != rt.primary {
		if p, err := r.zones[rt.secondary].Calloc(num, elemSize); err == nil {
			return p, nil
		}
	}
	return nil, errs.ErrNoSpace
}

// Deallocate finds which active zone owns ptr and frees it there. Returns
// ErrUnknownPointer if no zone claims it.
func (r *Router) Deallocate(ptr unsafe.Pointer) error {
	if ptr == nil {
		return errs.ErrBadArgument
	}
	assertTaskContext()
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if !r.initialized {
		return errs.ErrNotInitialized
	}
	for _, z := range r.zones {
		if z.OwnsPointer(ptr) {
			return z.Deallocate(ptr)
		}
	}
	return errs.ErrUnknownPointer
}

// FreeHeapSize sums FreeBytes across every active zone.
func (r *Router) FreeHeapSize() uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	var total uint64
	for _, z := range r.zones {
		total += z.FreeBytes()
	}
	return total
}

// MinimumEverFreeHeapSize sums MinEverFreeBytes across every active zone.
func (r *Router) MinimumEverFreeHeapSize() uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	var total uint64
	for _, z := range r.zones {
		total += z.MinEverFreeBytes()
	}
	return total
}

// TotalHeapSize sums TotalBytes across every active zone.
func (r *Router) TotalHeapSize() uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	var total uint64
	for _, z := range r.zones {
		total += z.TotalBytes()
	}
	return total
}

// UsedHeapSize returns TotalHeapSize minus FreeHeapSize.
func (r *Router) UsedHeapSize() uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	var total, free uint64
	for _, z := range r.zones {
		total += z.TotalBytes()
		free += z.FreeBytes()
	}
	return total - free
}

// HeapStats returns one stats.Zone snapshot per active zone.
func (r *Router) HeapStats() stats.Heap {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	h := stats.Heap{Zones: make([]stats.Zone, len(r.zones))}
	for i, z := range r.zones {
		h.Zones[i] = z.Snapshot()
	}
	return h
}

// ZoneFreeBytes, ZoneTotalBytes, ZoneMinFreeBytes and ZoneUsedBytes return
// the named statistic for zone index idx, or 0 if idx is out of range.

func (r *Router) ZoneFreeBytes(idx int) uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if idx < 0 || idx >= len(r.zones) {
		return 0
	}
	return r.zones[idx].FreeBytes()
}

func (r *Router) ZoneTotalBytes(idx int) uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if idx < 0 || idx >= len(r.zones) {
		return 0
	}
	return r.zones[idx].TotalBytes()
}

func (r *Router) ZoneMinFreeBytes(idx int) uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if idx < 0 || idx >= len(r.zones) {
		return 0
	}
	return r.zones[idx].MinEverFreeBytes()
}

func (r *Router) ZoneUsedBytes(idx int) uint64 {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	if idx < 0 || idx >= len(r.zones) {
		return 0
	}
	return r.zones[idx].UsedBytes()
}

// ValidateHeap runs every active zone's quarantine and allocated-region
// checks, regardless of Options.QuarantineCheckLevel/CheckAllAllocated,
// and reports whether all of them passed.
func (r *Router) ValidateHeap() bool {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	ok := true
	for _, z := range r.zones {
		ok = ok && z.VerifyQuarantine()
		ok = ok && z.VerifyAllocated()
	}
	return ok
}
