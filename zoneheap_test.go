package zoneheap

import (
	"testing"
	"unsafe"
)

func TestZeroValueHeapIsSafeBeforeInit(t *testing.T) {
	var h Heap
	if h.IsInitialized() {
		t.Fatal("zero-value heap should report uninitialized")
	}
	if p := h.Allocate(16); p != nil {
		t.Fatal("Allocate on uninitialized heap should return nil")
	}
	if p := h.Calloc(1, 16); p != nil {
		t.Fatal("Calloc on uninitialized heap should return nil")
	}
	if got := h.FreeHeapSize(); got != 0 {
		t.Fatalf("FreeHeapSize: got %d want 0", got)
	}
	if !h.ValidateHeap() {
		t.Fatal("ValidateHeap over zero zones should vacuously pass")
	}
	h.Deallocate(nil) // must not panic
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PageSize = 1024
	cfg.QuarantineCapacity = 8
	h := New(cfg, nil)
	if err := h.DefineHeapRegions([]int64{64 << 10, 32 << 10}); err != nil {
		t.Fatalf("DefineHeapRegions: %v", err)
	}
	t.Cleanup(h.ResetState)
	return h
}

func TestDefineHeapRegionsThenAllocateDeallocate(t *testing.T) {
	h := newTestHeap(t)
	if h.ZoneCount() != 2 {
		t.Fatalf("ZoneCount: got %d want 2", h.ZoneCount())
	}

	p := h.Allocate(256)
	if p == nil {
		t.Fatal("expected successful allocation")
	}
	if !h.ValidateHeap() {
		t.Fatal("heap should validate after a clean allocation")
	}
	h.Deallocate(p)
	if !h.ValidateHeap() {
		t.Fatal("heap should validate after a clean deallocation")
	}
}

func TestDefineHeapRegionsRejectsEmptyList(t *testing.T) {
	var h Heap
	if err := h.DefineHeapRegions(nil); err == nil {
		t.Fatal("expected error for empty region list")
	}
}

func TestZoneSelectionAffectsRouting(t *testing.T) {
	h := newTestHeap(t)
	h.SetZone(ZoneSlow)
	if got := h.GetZone(); got != ZoneSlow {
		t.Fatalf("GetZone: got %v want ZoneSlow", got)
	}
	p := h.Allocate(64)
	if p == nil {
		t.Fatal("expected allocation to succeed in zone 1")
	}
	if h.ZoneUsedBytes(0) != 0 || h.ZoneUsedBytes(1) != 1024 {
		t.Fatalf("expected the block in zone 1: used bytes zone0=%d zone1=%d", h.ZoneUsedBytes(0), h.ZoneUsedBytes(1))
	}
}

func TestHeapStatsAggregatesZones(t *testing.T) {
	h := newTestHeap(t)
	h.Allocate(100)
	h.Allocate(200)
	stats := h.HeapStats()
	if len(stats.Zones) != 2 {
		t.Fatalf("expected 2 zone snapshots, got %d", len(stats.Zones))
	}
	totals := stats.Totals()
	if totals.SuccessfulAllocs != 2 {
		t.Fatalf("Totals.SuccessfulAllocs: got %d want 2", totals.SuccessfulAllocs)
	}
}

func TestDeallocateUnknownPointerPanics(t *testing.T) {
	h := newTestHeap(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic deallocating a pointer no zone owns")
		}
	}()
	var stray byte
	h.Deallocate(unsafe.Pointer(&stray))
}

func TestResetStateAllowsReuse(t *testing.T) {
	h := newTestHeap(t)
	h.Allocate(10)
	h.ResetState()
	if h.IsInitialized() {
		t.Fatal("expected uninitialized after ResetState")
	}
	if err := h.DefineHeapRegions([]int64{16 << 10}); err != nil {
		t.Fatalf("DefineHeapRegions after reset: %v", err)
	}
	if h.ZoneCount() != 1 {
		t.Fatalf("ZoneCount after re-init: got %d want 1", h.ZoneCount())
	}
}
