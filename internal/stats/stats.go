// Package stats defines the small set of counters every zone and the
// router expose, mirroring the heap-stats struct a FreeRTOS-style
// allocator reports to its caller.
package stats

// Zone is a snapshot of one zone's bookkeeping counters.
type Zone struct {
	FreeBytes          uint64
	MinEverFreeBytes   uint64
	TotalBytes         uint64
	UsedBytes          uint64
	SuccessfulAllocs   uint64
	SuccessfulFrees    uint64
	QuarantineCount    int
	QuarantineCapacity int
}

// Heap aggregates every active zone's Zone snapshot.
type Heap struct {
	Zones []Zone
}

// Totals sums every zone's counters into one Zone-shaped summary.
func (h Heap) Totals() Zone {
	var t Zone
	for _, z := range h.Zones {
		t.FreeBytes += z.FreeBytes
		t.MinEverFreeBytes += z.MinEverFreeBytes
		t.TotalBytes += z.TotalBytes
		t.UsedBytes += z.UsedBytes
		t.SuccessfulAllocs += z.SuccessfulAllocs
		t.SuccessfulFrees += z.SuccessfulFrees
		t.QuarantineCount += z.QuarantineCount
		t.QuarantineCapacity += z.QuarantineCapacity
	}
	return t
}
