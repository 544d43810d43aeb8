//go:build unix

package zoneheap

import (
	"os"
	"os/exec"
	"testing"
)

// TestUseAfterFreeFaultsUnderMPU allocates a block from an MPU-protected
// heap, frees it, and then writes into the stale pointer anyway. With real
// regions (Heap.DefineHeapRegions mmaps them) and EnableMPU set, that write
// lands on a page Deallocate just mprotect'd read-only, and the process
// dies by SIGSEGV instead of silently corrupting a live allocation. The
// helper runs in a subprocess so the fault doesn't take the test binary
// down with it.
func TestUseAfterFreeFaultsUnderMPU(t *testing.T) {
	if os.Getenv("ZONEHEAP_UAF_HELPER") == "1" {
		runUseAfterFreeHelper()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestUseAfterFreeFaultsUnderMPU")
	cmd.Env = append(os.Environ(), "ZONEHEAP_UAF_HELPER=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected the helper subprocess to crash on use-after-free write")
	}
	if _, ok := err.(*exec.ExitError); !ok {
		t.Fatalf("expected an ExitError from the crashing subprocess, got %T: %v", err, err)
	}
}

func runUseAfterFreeHelper() {
	cfg := DefaultConfig()
	cfg.PageSize = 4096 // must match the OS page size for mprotect to bite
	cfg.EnableMPU = true
	cfg.MaxZones = 1

	h := New(cfg, nil)
	if err := h.DefineHeapRegions([]int64{64 * 4096}); err != nil {
		os.Exit(2)
	}

	p := h.Allocate(16)
	if p == nil {
		os.Exit(2)
	}
	h.Deallocate(p)

	stale := (*byte)(p)
	*stale = 0x41 // write into a page Deallocate just made read-only
	os.Exit(0)    // unreachable if MPU protection actually bit
}
