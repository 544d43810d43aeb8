//go:build !unix

package mpuguard

// StubGuard is the default Guard on builds with no virtual-memory
// protection support (every non-unix target).
// It mirrors the original firmware's host-build stub: always unavailable,
// Protect always fails with handle -1.
type StubGuard struct{}

// NewStubGuard returns a Guard that never actually protects anything.
func NewStubGuard() *StubGuard { return &StubGuard{} }

// New returns the default Guard for this build: on a non-unix target,
// always the stub. maxRegions is accepted for signature parity with the
// unix build and ignored.
func New(maxRegions int) Guard { return NewStubGuard() }

func (*StubGuard) Available() bool { return false }

func (*StubGuard) Protect(region []byte) (int, bool) { return -1, false }

func (*StubGuard) Unprotect(handle int) {}
