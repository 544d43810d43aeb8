// Package telemetry wraps the structured logger the allocator emits
// diagnostic events through: zone initialization, high-water-mark
// crossings, quarantine evictions, MPU protect/unprotect transitions, and
// the last line logged before a corruption panic unwinds the stack.
package telemetry

import "go.uber.org/zap"

// Logger is the narrow surface the allocator's internals depend on. A nil
// *Logger is valid and every method becomes a no-op, so callers that never
// configure logging pay nothing for it.
type Logger struct {
	z *zap.Logger
}

// New wraps an existing zap.Logger. Passing nil yields a no-op Logger.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// NewNop returns a Logger that discards everything, for tests and for
// callers that never opted into telemetry.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) logger() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// ZoneInitialized logs a zone coming online.
func (l *Logger) ZoneInitialized(zoneIndex uint8, totalPages int, pageSize int) {
	l.logger().Info("zone initialized",
		zap.Uint8("zone", zoneIndex),
		zap.Int("total_pages", totalPages),
		zap.Int("page_size", pageSize),
	)
}

// HighWaterMark logs a new minimum-ever-free crossing.
func (l *Logger) HighWaterMark(zoneIndex uint8, minEverFreeBytes uint64) {
	l.logger().Warn("new low-water mark for free bytes",
		zap.Uint8("zone", zoneIndex),
		zap.Uint64("min_ever_free_bytes", minEverFreeBytes),
	)
}

// QuarantineEvicted logs a quarantine entry being displaced back to the
// free pool by FIFO pressure.
func (l *Logger) QuarantineEvicted(zoneIndex uint8, startPage, pageCount uint16, freeSequence uint32) {
	l.logger().Debug("quarantine entry evicted",
		zap.Uint8("zone", zoneIndex),
		zap.Uint16("start_page", startPage),
		zap.Uint16("page_count", pageCount),
		zap.Uint32("free_sequence", freeSequence),
	)
}

// MPUProtect logs a successful mprotect of a coalesced quarantine region.
func (l *Logger) MPUProtect(zoneIndex uint8, handle int, pages int) {
	l.logger().Debug("mpu region protected",
		zap.Uint8("zone", zoneIndex),
		zap.Int("handle", handle),
		zap.Int("pages", pages),
	)
}

// MPUUnprotect logs a region handle being released.
func (l *Logger) MPUUnprotect(zoneIndex uint8, handle int) {
	l.logger().Debug("mpu region unprotected",
		zap.Uint8("zone", zoneIndex),
		zap.Int("handle", handle),
	)
}

// Corruption logs the detail of a fatal invariant violation immediately
// before the caller panics. It is the last thing written before the
// process's logs go quiet, and it logs at Error level; a logger whose
// minimum level is above Error drops it.
func (l *Logger) Corruption(zoneIndex uint8, detail string) {
	l.logger().Error("corruption detected, aborting",
		zap.Uint8("zone", zoneIndex),
		zap.String("detail", detail),
	)
}
