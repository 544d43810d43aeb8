// Package errs defines the sentinel errors and the fatal corruption payload
// shared across the allocator's components.
package errs

import "github.com/cockroachdb/errors"

var (
	// ErrNoSpace is returned when a zone has no free run of pages long
	// enough to satisfy a request.
	ErrNoSpace = errors.New("zoneheap: no space")
	// ErrBadArgument is returned for a reportable precondition failure
	// (zero-size request, nil pointer, malformed region list) that the
	// caller can recover from without the allocator changing state.
	ErrBadArgument = errors.New("zoneheap: bad argument")
	// ErrNotInitialized is returned when an operation runs against a zone
	// or router that has not completed DefineHeapRegions.
	ErrNotInitialized = errors.New("zoneheap: not initialized")
	// ErrUnknownPointer is returned when a pointer handed to Deallocate or
	// Calloc's caller does not belong to any configured zone.
	ErrUnknownPointer = errors.New("zoneheap: pointer does not belong to any zone")
	// ErrTooManyZones is returned when DefineHeapRegions is given more
	// regions than Config.MaxZones allows.
	ErrTooManyZones = errors.New("zoneheap: too many zones")
	// ErrRegionTooSmall is returned when a region passed to
	// DefineHeapRegions cannot hold even one page. A region larger than
	// Config.MaxPagesPerZone pages is not an error: only its first
	// MaxPagesPerZone pages are used.
	ErrRegionTooSmall = errors.New("zoneheap: region size invalid for configured page size")
)

// CorruptionError is the payload of the panic raised when an invariant
// check — header/footer magic, checksum, or cross-validation — fails.
// Corruption is never reportable: the allocator's internal state may
// already be inconsistent, so the only safe response is to stop.
type CorruptionError struct {
	Zone   uint8
	Detail string
}

func (e *CorruptionError) Error() string {
	return errors.Newf("zoneheap: corruption detected in zone %d: %s", e.Zone, e.Detail).Error()
}

// Fatal panics with a *CorruptionError describing detail within zone.
func Fatal(zone uint8, detail string) {
	panic(&CorruptionError{Zone: zone, Detail: detail})
}
