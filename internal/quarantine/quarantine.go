// Package quarantine implements a fixed-capacity FIFO table of recently
// freed blocks, used to delay page reuse so that use-after-free accesses
// land on still-guarded memory instead of a live allocation.
package quarantine

import "math"

// Entry describes one quarantined block.
type Entry struct {
	StartPage     uint16
	PageCount     uint16
	RequestedSize uint32
	FreeSequence  uint32
	MPURegion     int // -1 == unprotected; holds a Guard handle verbatim
	ZoneIndex     uint8
	Active        bool
}

// Table is a fixed-capacity FIFO quarantine table. The zero value is an
// empty, zero-capacity table; call Init before use.
type Table struct {
	entries      []Entry
	nextSequence uint32
	activeCount  int
}

// Init resets t to capacity empty slots and restarts the free-sequence
// counter at 1 (0 marks a slot that has never held an entry).
func (t *Table) Init(capacity int) {
	if capacity < 0 {
		panic("quarantine: negative capacity")
	}
	if cap(t.entries) >= capacity {
		t.entries = t.entries[:capacity]
		for i := range t.entries {
			t.entries[i] = Entry{}
		}
	} else {
		t.entries = make([]Entry, capacity)
	}
	t.nextSequence = 1
	t.activeCount = 0
}

// Capacity returns the number of slots in t.
func (t *Table) Capacity() int { return len(t.entries) }

// Count returns the number of active entries.
func (t *Table) Count() int { return t.activeCount }

// IsEmpty reports whether t holds no active entries.
func (t *Table) IsEmpty() bool { return t.activeCount == 0 }

// IsFull reports whether every slot in t holds an active entry.
func (t *Table) IsFull() bool { return t.activeCount >= len(t.entries) }

// Add quarantines a newly freed block. If the table was already full, the
// oldest active entry (lowest FreeSequence) is evicted to make room; Add
// returns that entry and true. Otherwise it returns the zero Entry and
// false.
func (t *Table) Add(startPage, pageCount uint16, requestedSize uint32, zoneIndex uint8) (evicted Entry, didEvict bool) {
	if t.IsFull() {
		idx := t.oldestIndex()
		evicted = t.entries[idx]
		t.entries[idx].Active = false
		t.activeCount--
		didEvict = true
	}

	slot := -1
	for i := range t.entries {
		if !t.entries[i].Active {
			slot = i
			break
		}
	}
	if slot == -1 {
		panic("quarantine: no free slot after eviction")
	}

	t.entries[slot] = Entry{
		StartPage:     startPage,
		PageCount:     pageCount,
		RequestedSize: requestedSize,
		FreeSequence:  t.nextSequence,
		MPURegion:     -1,
		ZoneIndex:     zoneIndex,
		Active:        true,
	}
	t.nextSequence++
	t.activeCount++
	return evicted, didEvict
}

func (t *Table) oldestIndex() int {
	oldest := -1
	minSeq := uint32(math.MaxUint32)
	for i := range t.entries {
		if t.entries[i].Active && t.entries[i].FreeSequence < minSeq {
			minSeq = t.entries[i].FreeSequence
			oldest = i
		}
	}
	if oldest == -1 {
		panic("quarantine: oldestIndex called on table with no active entries")
	}
	return oldest
}

// Deactivate marks the entry at idx inactive, freeing its slot for reuse.
// Panics if idx is out of range or the slot was not active.
func (t *Table) Deactivate(idx int) {
	if idx < 0 || idx >= len(t.entries) {
		panic("quarantine: index out of range")
	}
	if !t.entries[idx].Active {
		panic("quarantine: deactivating an inactive slot")
	}
	t.entries[idx].Active = false
	t.activeCount--
}

// SetMPURegion records which MPU region (if any) currently protects the
// entry at idx.
func (t *Table) SetMPURegion(idx int, region int) {
	if idx < 0 || idx >= len(t.entries) {
		panic("quarantine: index out of range")
	}
	t.entries[idx].MPURegion = region
}

// EntryAt returns the slot at idx, active or not.
func (t *Table) EntryAt(idx int) Entry {
	if idx < 0 || idx >= len(t.entries) {
		panic("quarantine: index out of range")
	}
	return t.entries[idx]
}

// Entries returns every active entry's slot index, in slot order (not
// FIFO order), for callers that need to scan the whole table, such as
// VerifyQuarantine.
func (t *Table) Entries() []int {
	out := make([]int, 0, t.activeCount)
	for i := range t.entries {
		if t.entries[i].Active {
			out = append(out, i)
		}
	}
	return out
}

// FindByStartPage returns the slot index of the active entry owning
// startPage within zoneIndex, or -1 if none matches. Used by Deallocate's
// double-free detection.
func (t *Table) FindByStartPage(zoneIndex uint8, startPage uint16) int {
	for i := range t.entries {
		e := t.entries[i]
		if e.Active && e.ZoneIndex == zoneIndex && e.StartPage == startPage {
			return i
		}
	}
	return -1
}
