package zoneheap

import "zoneheap/internal/router"

// Zone selects which region(s) an allocation call should prefer. The
// underlying policy — which zone is tried first, whether a second zone is
// tried on overflow, and in what order the remaining zones are swept — is
// implemented by internal/router; this type just re-exports it at the
// package's public surface.
type Zone = router.Zone

const (
	// ZoneAny tries the first zone, then falls back through every other
	// zone in index order.
	ZoneAny = router.ZoneAny
	// ZoneFast allocates only from zone 0.
	ZoneFast = router.ZoneFast
	// ZoneSlow allocates only from zone 1.
	ZoneSlow = router.ZoneSlow
	// ZoneFastPrefer tries zone 0, then zone 1, then the rest.
	ZoneFastPrefer = router.ZoneFastPrefer
	// ZoneSlowPrefer tries zone 1, then zone 0, then the rest.
	ZoneSlowPrefer = router.ZoneSlowPrefer
)
