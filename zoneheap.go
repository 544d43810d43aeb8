// Package zoneheap implements a page-granular, multi-zone dynamic memory
// allocator in the style of a hardened embedded heap: every allocation is
// bracketed by a magic-and-checksum header/footer pair, every free goes
// through a FIFO quarantine before its pages are reused, and quarantined
// pages are optionally placed under real virtual-memory write protection
// so a use-after-free faults instead of silently corrupting a live
// allocation.
package zoneheap

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"zoneheap/internal/errs"
	"zoneheap/internal/mmap"
	"zoneheap/internal/mpuguard"
	"zoneheap/internal/router"
	"zoneheap/internal/stats"
	"zoneheap/internal/telemetry"
)

// Stats mirrors the original's HeapStats_t: the counters FreeRTOS-style
// heaps report about their own health.
type Stats = stats.Heap

// Heap is the allocator's public façade: one multi-zone, page-granular
// heap. The zero value is a valid, uninitialized Heap — every method
// below is safe to call before DefineHeapRegions, per the original's BSS
// zero-init contract.
type Heap struct {
	cfg    Config
	guard  mpuguard.Guard
	log    *telemetry.Logger
	arenas [][]byte

	r router.Router
}

// New builds a Heap from cfg but does not activate any zones yet; call
// DefineHeapRegions next. log may be nil to discard all telemetry.
func New(cfg Config, log *telemetry.Logger) *Heap {
	h := &Heap{cfg: cfg, log: log}
	if cfg.EnableMPU {
		h.guard = mpuguard.New(cfg.MPURegionCount)
	}
	return h
}

// DefineHeapRegions mmaps len(sizes) anonymous regions of the given byte
// sizes and brings each one under management as zone 0, 1, ... in order.
// It replaces any previously active zones, unmapping their arenas once the
// new zones have activated successfully.
// Returns an error if sizes is empty, exceeds Config.MaxZones, or any
// underlying mmap fails — unlike the original's fire-and-forget
// defineHeapRegions, since a hosted mmap can fail in ways a statically
// linked region array cannot.
func (h *Heap) DefineHeapRegions(sizes []int64) error {
	if len(sizes) == 0 {
		return errors.Wrap(errs.ErrBadArgument, "DefineHeapRegions: no regions given")
	}

	arenas := make([][]byte, 0, len(sizes))
	regions := make([]router.Region, 0, len(sizes))
	for _, size := range sizes {
		if size <= 0 {
			h.unmapAll(arenas)
			return errors.Newf("zoneheap: region size must be positive, got %d", size)
		}
		arena, err := mmap.MapAnon(int(size))
		if err != nil {
			h.unmapAll(arenas)
			return errors.Wrap(err, "zoneheap: mmap region")
		}
		arenas = append(arenas, arena)
		regions = append(regions, router.Region{Start: arena})
	}

	opts := router.Options{
		PageSize:             h.cfg.PageSize,
		MaxZones:             h.cfg.MaxZones,
		MaxPagesPerZone:      h.cfg.MaxPagesPerZone,
		QuarantineCapacity:   h.cfg.QuarantineCapacity,
		FillOnFree:           h.cfg.FillOnFree,
		ClearOnEvict:         h.cfg.ClearOnEvict,
		QuarantineCheckLevel: h.cfg.QuarantineCheckLevel,
		CheckAllAllocated:    h.cfg.CheckAllAllocated,
		EnableMPU:            h.cfg.EnableMPU,
		Guard:                h.guard,
		Log:                  h.log,
	}

	if err := h.r.DefineHeapRegions(regions, opts); err != nil {
		h.unmapAll(arenas)
		return errors.Wrap(err, "zoneheap: activate regions")
	}

	h.unmapAll(h.arenas)
	h.arenas = arenas
	return nil
}

func (h *Heap) unmapAll(arenas [][]byte) {
	for _, a := range arenas {
		_ = mmap.UnmapAnon(a)
	}
}

// ResetState discards every active zone and releases their backing
// memory. A Heap can be reused afterwards by calling DefineHeapRegions
// again.
func (h *Heap) ResetState() {
	h.r.ResetState()
	h.unmapAll(h.arenas)
	h.arenas = nil
}

// Allocate reserves size bytes and returns a pointer to them, or nil if
// the heap is uninitialized, size is zero, or no zone has room.
func (h *Heap) Allocate(size int) unsafe.Pointer {
	p, err := h.r.Allocate(size)
	if err != nil {
		return nil
	}
	return p
}

// Calloc reserves num*elemSize zeroed bytes, or nil on the same conditions
// as Allocate plus a num*elemSize overflow.
func (h *Heap) Calloc(num, elemSize int) unsafe.Pointer {
	p, err := h.r.Calloc(num, elemSize)
	if err != nil {
		return nil
	}
	return p
}

// Deallocate quarantines the block at ptr. A nil ptr is a no-op. A ptr
// that does not belong to any active zone, or whose header/footer fails
// validation, is a fatal invariant violation and panics — Deallocate never
// silently ignores a bad pointer the way Allocate silently returns nil for
// a bad request.
func (h *Heap) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	if err := h.r.Deallocate(ptr); err != nil {
		panic(err)
	}
}

// FreeHeapSize returns the total bytes currently free across every active
// zone.
func (h *Heap) FreeHeapSize() int { return int(h.r.FreeHeapSize()) }

// MinimumEverFreeHeapSize returns the lowest FreeHeapSize has ever been
// since the most recent DefineHeapRegions.
func (h *Heap) MinimumEverFreeHeapSize() int { return int(h.r.MinimumEverFreeHeapSize()) }

// TotalHeapSize returns the combined capacity of every active zone.
func (h *Heap) TotalHeapSize() int { return int(h.r.TotalHeapSize()) }

// UsedHeapSize returns TotalHeapSize minus FreeHeapSize.
func (h *Heap) UsedHeapSize() int { return int(h.r.UsedHeapSize()) }

// HeapStats returns a snapshot of every active zone's counters.
func (h *Heap) HeapStats() Stats { return h.r.HeapStats() }

// ZoneFreeBytes, ZoneTotalBytes, ZoneMinFreeBytes, and ZoneUsedBytes
// report the named statistic for the zone at idx, or 0 if idx is out of
// range.

func (h *Heap) ZoneFreeBytes(idx int) int    { return int(h.r.ZoneFreeBytes(idx)) }
func (h *Heap) ZoneTotalBytes(idx int) int   { return int(h.r.ZoneTotalBytes(idx)) }
func (h *Heap) ZoneMinFreeBytes(idx int) int { return int(h.r.ZoneMinFreeBytes(idx)) }
func (h *Heap) ZoneUsedBytes(idx int) int    { return int(h.r.ZoneUsedBytes(idx)) }

// ZoneCount returns the number of active zones.
func (h *Heap) ZoneCount() int { return h.r.ZoneCount() }

// SetZone changes which zone(s) subsequent Allocate/Calloc calls prefer.
func (h *Heap) SetZone(z Zone) { h.r.SetZone(z) }

// GetZone returns the currently selected zone policy.
func (h *Heap) GetZone() Zone { return h.r.GetZone() }

// ValidateHeap re-validates every active zone's quarantine and allocated
// regions and reports whether all of them are intact.
func (h *Heap) ValidateHeap() bool { return h.r.ValidateHeap() }

// IsInitialized reports whether DefineHeapRegions has successfully run
// since the last ResetState.
func (h *Heap) IsInitialized() bool { return h.r.IsInitialized() }
