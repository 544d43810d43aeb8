package main

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"zoneheap"
	"zoneheap/internal/telemetry"
)

func main() {
	zapLogger, _ := zap.NewDevelopment()
	defer zapLogger.Sync()

	cfg := zoneheap.DefaultConfig()
	h := zoneheap.New(cfg, telemetry.New(zapLogger))
	if err := h.DefineHeapRegions([]int64{4 << 20, 1 << 20}); err != nil {
		fmt.Println("define regions:", err)
		return
	}
	defer h.ResetState()

	var mu sync.Mutex
	var ptrs []unsafe.Pointer

	var wg sync.WaitGroup
	wg.Add(2)

	fastFill := func() {
		defer wg.Done()
		h.SetZone(zoneheap.ZoneFastPrefer)
		for i := 0; i < 200; i++ {
			p := h.Allocate(64)
			if p == nil {
				continue
			}
			mu.Lock()
			ptrs = append(ptrs, p)
			mu.Unlock()
		}
	}
	slowFill := func() {
		defer wg.Done()
		h.SetZone(zoneheap.ZoneSlowPrefer)
		for i := 0; i < 50; i++ {
			p := h.Calloc(16, 8)
			if p == nil {
				continue
			}
			mu.Lock()
			ptrs = append(ptrs, p)
			mu.Unlock()
		}
	}
	go fastFill()
	go slowFill()
	wg.Wait()

	fmt.Printf("allocated %d blocks, free=%d/%d bytes\n", len(ptrs), h.FreeHeapSize(), h.TotalHeapSize())

	for _, p := range ptrs {
		h.Deallocate(p)
	}

	fmt.Printf("after free: free=%d/%d bytes, heap valid=%v\n", h.FreeHeapSize(), h.TotalHeapSize(), h.ValidateHeap())

	stats := h.HeapStats()
	for i, z := range stats.Zones {
		fmt.Printf("zone %d: allocs=%d frees=%d quarantine=%d/%d\n",
			i, z.SuccessfulAllocs, z.SuccessfulFrees, z.QuarantineCount, z.QuarantineCapacity)
	}
}
