// Package pageallocator implements the page-granular allocator for a
// single contiguous zone: bitmap-tracked free runs, header/footer-guarded
// blocks, a FIFO quarantine, and optional MPU protection of quarantined
// pages. It holds no lock of its own — callers (the router) serialize all
// access.
package pageallocator

import (
	"unsafe"

	"zoneheap/internal/blockguard"
	"zoneheap/internal/errs"
	"zoneheap/internal/mpuguard"
	"zoneheap/internal/pagebitmap"
	"zoneheap/internal/quarantine"
	"zoneheap/internal/stats"
	"zoneheap/internal/telemetry"
)

// Options carries the subset of Config a Zone needs, plus the guard and
// logger it should drive.
type Options struct {
	PageSize             int
	QuarantineCapacity   int
	FillOnFree           bool
	ClearOnEvict         bool
	QuarantineCheckLevel int
	CheckAllAllocated    bool
	EnableMPU            bool

	Guard mpuguard.Guard
	Log   *telemetry.Logger
}

// Zone is a page-granular allocator over one contiguous arena. The zero
// value is unusable; construct with New.
type Zone struct {
	arena      []byte
	pageSize   int
	totalPages int
	zoneIndex  uint8

	bitmapInUse     pagebitmap.Bitmap
	bitmapAllocated pagebitmap.Bitmap
	quarantineTbl   quarantine.Table

	sequenceCounter uint32
	freePages       int
	minEverFree     int
	successAllocs   uint64
	successFrees    uint64

	opts Options
}

// New initializes a Zone over arena for zoneIndex. arena must be at least
// one page long; its length need not be an exact multiple of PageSize —
// any trailing partial page is simply never addressed.
func New(arena []byte, zoneIndex uint8, opts Options) (*Zone, error) {
	if opts.PageSize <= 0 {
		return nil, errs.ErrBadArgument
	}
	if len(arena) < opts.PageSize {
		return nil, errs.ErrRegionTooSmall
	}
	minBlock := blockguard.HeaderSize + blockguard.FooterSize + 1
	if opts.PageSize < minBlock {
		return nil, errs.ErrRegionTooSmall
	}

	totalPages := len(arena) / opts.PageSize
	if totalPages <= 0 {
		return nil, errs.ErrRegionTooSmall
	}

	z := &Zone{
		arena:      arena,
		pageSize:   opts.PageSize,
		totalPages: totalPages,
		zoneIndex:  zoneIndex,
		opts:       opts,
	}
	z.bitmapInUse.Init(totalPages)
	z.bitmapAllocated.Init(totalPages)
	z.quarantineTbl.Init(opts.QuarantineCapacity)
	z.freePages = totalPages
	z.minEverFree = totalPages

	if z.opts.Log != nil {
		z.opts.Log.ZoneInitialized(zoneIndex, totalPages, opts.PageSize)
	}
	return z, nil
}

// ZoneIndex returns the zone's index as passed to New.
func (z *Zone) ZoneIndex() uint8 { return z.zoneIndex }

// fatal logs detail (if a logger is configured) and then panics via
// errs.Fatal. Every invariant check in this file routes through here so
// the log line is guaranteed to be written before the panic unwinds.
func (z *Zone) fatal(detail string) {
	if z.opts.Log != nil {
		z.opts.Log.Corruption(z.zoneIndex, detail)
	}
	errs.Fatal(z.zoneIndex, detail)
}

func (z *Zone) pagesNeeded(requestedSize int) int {
	total := blockguard.HeaderSize + requestedSize + blockguard.FooterSize
	return (total + z.pageSize - 1) / z.pageSize
}

func (z *Zone) pageAddress(pageIdx int) unsafe.Pointer {
	return unsafe.Pointer(&z.arena[pageIdx*z.pageSize])
}

// pageIndex translates a user-facing pointer back to a page index within
// this zone's arena, or -1 if ptr does not fall within the arena. The
// module's unsafe.Pointer arithmetic is confined to this package (this,
// pageAddress, Deallocate's user-to-header step and the MPU window slice):
// every other component addresses a block as (zoneIndex, startPage,
// pageCount).
func (z *Zone) pageIndex(ptr unsafe.Pointer) int {
	base := unsafe.Pointer(&z.arena[0])
	baseAddr := uintptr(base)
	addr := uintptr(ptr)
	end := baseAddr + uintptr(z.totalPages*z.pageSize)
	if addr < baseAddr || addr >= end {
		return -1
	}
	return int((addr - baseAddr) / uintptr(z.pageSize))
}

func (z *Zone) pageBytes(pageIdx, pageCount int) []byte {
	start := pageIdx * z.pageSize
	end := start + pageCount*z.pageSize
	return z.arena[start:end]
}

// Allocate reserves enough whole pages to hold requestedSize bytes plus
// the header/footer, and returns a pointer to the payload. It returns
// ErrBadArgument for a zero-size request and ErrNoSpace when no free run
// is long enough.
func (z *Zone) Allocate(requestedSize int) (unsafe.Pointer, error) {
	if requestedSize <= 0 {
		return nil, errs.ErrBadArgument
	}

	z.runIntegrityChecks()

	pages := z.pagesNeeded(requestedSize)
	if pages > z.freePages {
		return nil, errs.ErrNoSpace
	}

	sp := z.bitmapInUse.FindFreeRun(pages)
	if sp == pagebitmap.NotFound {
		return nil, errs.ErrNoSpace
	}

	seq := z.sequenceCounter
	z.sequenceCounter++

	z.bitmapInUse.SetRange(sp, pages)
	z.bitmapAllocated.SetRange(sp, pages)

	block := z.pageBytes(sp, pages)
	header := blockguard.WriteHeader(block, uint32(requestedSize), uint16(sp), uint16(pages), z.zoneIndex, seq)
	footerOff := blockguard.FooterOffset(uint32(requestedSize))
	blockguard.WriteFooter(block[footerOff:], uint32(requestedSize), uint16(sp), uint16(pages), z.zoneIndex, seq)

	padOff := blockguard.PaddingOffset(uint32(requestedSize))
	padLen := blockguard.PaddingSize(z.pageSize, pages, uint32(requestedSize))
	if padLen > 0 {
		blockguard.FillPadding(block[padOff : padOff+padLen])
	}

	z.freePages -= pages
	if z.freePages < z.minEverFree {
		z.minEverFree = z.freePages
		if z.opts.Log != nil {
			z.opts.Log.HighWaterMark(z.zoneIndex, uint64(z.minEverFree)*uint64(z.pageSize))
		}
	}
	z.successAllocs++

	_ = header
	return unsafe.Pointer(&block[blockguard.PayloadOffset()]), nil
}

// Calloc allocates num*elemSize bytes and zeroes the payload before
// returning it. Returns ErrBadArgument on overflow or a zero-sized
// request.
func (z *Zone) Calloc(num, elemSize int) (unsafe.Pointer, error) {
	if num < 0 || elemSize < 0 {
		return nil, errs.ErrBadArgument
	}
	if num > 0 && elemSize > (1<<62)/num {
		return nil, errs.ErrBadArgument
	}
	total := num * elemSize
	ptr, err := z.Allocate(total)
	if err != nil {
		return nil, err
	}
	payload := unsafe.Slice((*byte)(ptr), total)
	for i := range payload {
		payload[i] = 0
	}
	return ptr, nil
}

// Deallocate validates ptr's header and footer, moves the block into
// quarantine (evicting the oldest entry if the table is full), and scrubs
// its payload. A corrupt header/footer, a cross-zone pointer, or a
// forged start page is a fatal invariant violation: Deallocate panics via
// errs.Fatal rather than returning an error, since the allocator's state
// may already be inconsistent.
func (z *Zone) Deallocate(ptr unsafe.Pointer) error {
	if ptr == nil {
		return errs.ErrBadArgument
	}

	pageIdx := z.pageIndex(unsafe.Pointer(uintptr(ptr) - uintptr(blockguard.HeaderSize)))
	if pageIdx < 0 {
		return errs.ErrUnknownPointer
	}

	header := z.headerAt(pageIdx)
	if !blockguard.ValidateHeader(header.raw) {
		z.fatal("header magic/checksum mismatch on deallocate")
	}
	h := blockguard.DecodeHeader(header.raw)

	if h.ZoneIndex != z.zoneIndex {
		z.fatal("pointer belongs to a different zone")
	}
	if int(h.StartPage) != pageIdx {
		z.fatal("forged or corrupted start page")
	}
	if int(h.StartPage)+int(h.PageCount) > z.totalPages {
		z.fatal("page count runs past end of zone")
	}

	block := z.pageBytes(int(h.StartPage), int(h.PageCount))
	footerOff := blockguard.FooterOffset(h.RequestedSize)
	if footerOff+blockguard.FooterSize > len(block) {
		z.fatal("requestedSize places footer outside block")
	}
	footerRaw := block[footerOff : footerOff+blockguard.FooterSize]
	if !blockguard.ValidateFooter(footerRaw) {
		z.fatal("footer magic/checksum mismatch on deallocate")
	}
	f := blockguard.DecodeFooter(footerRaw)
	if !blockguard.ValidatePair(h, f) {
		z.fatal("header/footer field mismatch")
	}
	if !z.bitmapAllocated.Test(pageIdx) {
		if z.quarantineTbl.FindByStartPage(z.zoneIndex, h.StartPage) >= 0 {
			z.fatal("double free: block is already quarantined")
		}
		z.fatal("double free: block is not currently allocated")
	}

	z.runIntegrityChecks()

	evicted, didEvict := z.quarantineTbl.Add(h.StartPage, h.PageCount, h.RequestedSize, z.zoneIndex)
	if didEvict {
		z.evictFromQuarantine(evicted)
	}

	if z.opts.FillOnFree {
		payload := block[blockguard.PayloadOffset() : blockguard.PayloadOffset()+int(h.RequestedSize)]
		blockguard.FillQuarantine(payload)
	}

	z.bitmapAllocated.ClearRange(int(h.StartPage), int(h.PageCount))

	if z.opts.EnableMPU {
		z.updateMPUProtection(h.StartPage, h.PageCount)
	}

	z.successFrees++
	return nil
}

type headerView struct {
	raw []byte
}

func (z *Zone) headerAt(pageIdx int) headerView {
	start := pageIdx * z.pageSize
	return headerView{raw: z.arena[start : start+blockguard.HeaderSize]}
}

func (z *Zone) evictFromQuarantine(entry quarantine.Entry) {
	if entry.MPURegion >= 0 {
		z.opts.Guard.Unprotect(entry.MPURegion)
		if z.opts.Log != nil {
			z.opts.Log.MPUUnprotect(z.zoneIndex, entry.MPURegion)
		}
	}

	if z.opts.ClearOnEvict {
		region := z.pageBytes(int(entry.StartPage), int(entry.PageCount))
		blockguard.FillCleared(region)
	}

	z.bitmapInUse.ClearRange(int(entry.StartPage), int(entry.PageCount))
	z.freePages += int(entry.PageCount)

	if z.opts.Log != nil {
		z.opts.Log.QuarantineEvicted(z.zoneIndex, entry.StartPage, entry.PageCount, entry.FreeSequence)
	}
}

// updateMPUProtection coalesces the pages freshly quarantined at
// [startPage, startPage+pageCount) with any adjacent non-allocated
// (free or already-quarantined) pages, finds the largest power-of-two,
// aligned sub-region that still fits inside that coalesced run (shrinking
// no further than one page), releases any existing MPU regions the new
// region fully covers, and protects that sub-region as one unit.
func (z *Zone) updateMPUProtection(startPage, pageCount uint16) {
	if z.opts.Guard == nil || !z.opts.Guard.Available() {
		return
	}

	regionStart := int(startPage)
	regionEnd := int(startPage) + int(pageCount)

	for regionStart > 0 && !z.bitmapAllocated.Test(regionStart-1) {
		regionStart--
	}
	for regionEnd < z.totalPages && !z.bitmapAllocated.Test(regionEnd) {
		regionEnd++
	}

	regionPages := regionEnd - regionStart
	regionBytes := uintptr(regionPages * z.pageSize)
	regionAddr := uintptr(z.pageAddress(regionStart))

	protectSize := mpuguard.FloorPow2(regionBytes)
	if protectSize == 0 {
		return
	}
	protectAddr := mpuguard.AlignDown(regionAddr, protectSize)

	lo := regionAddr
	hi := lo + regionBytes
	for protectSize > uintptr(z.pageSize) {
		end := protectAddr + protectSize
		if protectAddr >= lo && end <= hi {
			break
		}
		protectSize /= 2
		protectAddr = mpuguard.AlignDown(uintptr(z.pageAddress(int(startPage))), protectSize)
	}

	coveredIdx := z.quarantineTbl.Entries()
	for _, idx := range coveredIdx {
		e := z.quarantineTbl.EntryAt(idx)
		if e.MPURegion < 0 {
			continue
		}
		ea := uintptr(z.pageAddress(int(e.StartPage)))
		ee := ea + uintptr(int(e.PageCount)*z.pageSize)
		if ea >= protectAddr && ee <= protectAddr+protectSize {
			z.opts.Guard.Unprotect(e.MPURegion)
			z.quarantineTbl.SetMPURegion(idx, -1)
		}
	}

	protectBytes := unsafe.Slice((*byte)(unsafe.Pointer(protectAddr)), int(protectSize))
	handle, ok := z.opts.Guard.Protect(protectBytes)
	if !ok {
		return
	}
	if z.opts.Log != nil {
		z.opts.Log.MPUProtect(z.zoneIndex, handle, int(protectSize)/z.pageSize)
	}

	for _, idx := range z.quarantineTbl.Entries() {
		e := z.quarantineTbl.EntryAt(idx)
		ea := uintptr(z.pageAddress(int(e.StartPage)))
		ee := ea + uintptr(int(e.PageCount)*z.pageSize)
		if ea >= protectAddr && ee <= protectAddr+protectSize {
			z.quarantineTbl.SetMPURegion(idx, handle)
		}
	}
}

func (z *Zone) runIntegrityChecks() {
	if z.opts.QuarantineCheckLevel > 0 {
		if !z.VerifyQuarantine() {
			z.fatal("quarantine verification failed")
		}
	}
	if z.opts.CheckAllAllocated {
		if !z.VerifyAllocated() {
			z.fatal("allocated-region verification failed")
		}
	}
}

// VerifyQuarantine re-validates every active quarantine entry's header,
// footer and pairing, and — depending on Options.QuarantineCheckLevel —
// its payload and padding fill patterns.
func (z *Zone) VerifyQuarantine() bool {
	for _, idx := range z.quarantineTbl.Entries() {
		e := z.quarantineTbl.EntryAt(idx)
		block := z.pageBytes(int(e.StartPage), int(e.PageCount))

		if !blockguard.ValidateHeader(block) {
			return false
		}
		h := blockguard.DecodeHeader(block)

		footerOff := blockguard.FooterOffset(h.RequestedSize)
		if footerOff+blockguard.FooterSize > len(block) {
			return false
		}
		footerRaw := block[footerOff : footerOff+blockguard.FooterSize]
		if !blockguard.ValidateFooter(footerRaw) {
			return false
		}
		f := blockguard.DecodeFooter(footerRaw)
		if !blockguard.ValidatePair(h, f) {
			return false
		}

		if z.opts.QuarantineCheckLevel >= 2 {
			payload := block[blockguard.PayloadOffset() : blockguard.PayloadOffset()+int(h.RequestedSize)]
			if !blockguard.ValidateQuarantine(payload) {
				return false
			}
		}
		if z.opts.QuarantineCheckLevel >= 3 {
			padOff := blockguard.PaddingOffset(h.RequestedSize)
			padLen := blockguard.PaddingSize(z.pageSize, int(h.PageCount), h.RequestedSize)
			if padLen > 0 && !blockguard.ValidatePadding(block[padOff:padOff+padLen]) {
				return false
			}
		}
	}
	return true
}

// VerifyAllocated walks every page, validating the header/footer of each
// live allocation it finds and skipping over its pages in one jump.
func (z *Zone) VerifyAllocated() bool {
	for i := 0; i < z.totalPages; {
		if !z.bitmapAllocated.Test(i) {
			i++
			continue
		}
		block := z.pageBytes(i, z.totalPages-i)
		if !blockguard.ValidateHeader(block) {
			i++
			continue
		}
		h := blockguard.DecodeHeader(block)
		if int(h.StartPage) != i {
			i++
			continue
		}

		footerOff := blockguard.FooterOffset(h.RequestedSize)
		if footerOff+blockguard.FooterSize > len(block) {
			return false
		}
		footerRaw := block[footerOff : footerOff+blockguard.FooterSize]
		if !blockguard.ValidateFooter(footerRaw) {
			return false
		}
		f := blockguard.DecodeFooter(footerRaw)
		if !blockguard.ValidatePair(h, f) {
			return false
		}

		i += int(h.PageCount)
	}
	return true
}

// RunChecks runs whichever of VerifyQuarantine/VerifyAllocated are enabled
// by Options, returning false if any enabled check fails.
func (z *Zone) RunChecks() bool {
	ok := true
	if z.opts.QuarantineCheckLevel > 0 {
		ok = ok && z.VerifyQuarantine()
	}
	if z.opts.CheckAllAllocated {
		ok = ok && z.VerifyAllocated()
	}
	return ok
}

// FreeBytes returns the number of bytes currently free (not in use and not
// quarantined).
func (z *Zone) FreeBytes() uint64 { return uint64(z.freePages) * uint64(z.pageSize) }

// MinEverFreeBytes returns the lowest FreeBytes has ever been since New.
func (z *Zone) MinEverFreeBytes() uint64 { return uint64(z.minEverFree) * uint64(z.pageSize) }

// TotalBytes returns the zone's total addressable capacity.
func (z *Zone) TotalBytes() uint64 { return uint64(z.totalPages) * uint64(z.pageSize) }

// UsedBytes returns TotalBytes minus FreeBytes.
func (z *Zone) UsedBytes() uint64 { return z.TotalBytes() - z.FreeBytes() }

// SuccessfulAllocs returns the lifetime count of Allocate/Calloc calls
// that returned a non-nil pointer.
func (z *Zone) SuccessfulAllocs() uint64 { return z.successAllocs }

// SuccessfulFrees returns the lifetime count of Deallocate calls that
// completed without a fatal invariant violation.
func (z *Zone) SuccessfulFrees() uint64 { return z.successFrees }

// QuarantineCount returns the number of blocks currently quarantined.
func (z *Zone) QuarantineCount() int { return z.quarantineTbl.Count() }

// QuarantineCapacity returns the fixed size of the quarantine table.
func (z *Zone) QuarantineCapacity() int { return z.quarantineTbl.Capacity() }

// OwnsPointer reports whether ptr points into a payload this zone could
// have handed out: strictly after the first page's header and strictly
// before the end of the arena.
func (z *Zone) OwnsPointer(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	base := uintptr(unsafe.Pointer(&z.arena[0]))
	lo := base + uintptr(blockguard.HeaderSize)
	hi := base + uintptr(z.totalPages*z.pageSize)
	addr := uintptr(ptr)
	return addr >= lo && addr < hi
}

// Snapshot returns this zone's counters as a stats.Zone.
func (z *Zone) Snapshot() stats.Zone {
	return stats.Zone{
		FreeBytes:          z.FreeBytes(),
		MinEverFreeBytes:   z.MinEverFreeBytes(),
		TotalBytes:         z.TotalBytes(),
		UsedBytes:          z.UsedBytes(),
		SuccessfulAllocs:   z.successAllocs,
		SuccessfulFrees:    z.successFrees,
		QuarantineCount:    z.quarantineTbl.Count(),
		QuarantineCapacity: z.quarantineTbl.Capacity(),
	}
}
