// Package mpuguard abstracts memory protection of quarantined pages behind
// a small capability interface. On an embedded target this would drive the
// Cortex-M MPU directly; on a hosted build it drives the process's virtual
// memory protection through mmap/mprotect, which is the closest analogue a
// userspace Go program has to "make these bytes fault on touch."
package mpuguard

// Guard protects and unprotects byte ranges of a zone's arena. Protect
// returns an opaque, implementation-defined region handle (mirroring an
// MPU region index) and a success flag; Unprotect releases a handle
// returned by a prior Protect.
//
// Implementations are not required to be available: Available reports
// whether Protect can ever succeed on this build. Callers must treat a
// Guard as best-effort — MPU protection is a defense-in-depth measure, not
// a correctness requirement of the allocator.
type Guard interface {
	Available() bool
	Protect(region []byte) (handle int, ok bool)
	Unprotect(handle int)
}

// FloorPow2 returns the largest power of two <= value, or 0 if value == 0.
func FloorPow2(value uintptr) uintptr {
	if value == 0 {
		return 0
	}
	result := uintptr(1)
	for result*2 <= value {
		result *= 2
	}
	return result
}

// IsPow2 reports whether value is a nonzero power of two.
func IsPow2(value uintptr) bool {
	return value > 0 && value&(value-1) == 0
}

// AlignDown rounds addr down to the nearest multiple of alignment, which
// must be a power of two.
func AlignDown(addr uintptr, alignment uintptr) uintptr {
	if !IsPow2(alignment) {
		panic("mpuguard: alignment must be a power of two")
	}
	return addr &^ (alignment - 1)
}
