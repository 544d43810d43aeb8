//go:build !unix

package mpuguard

import "testing"

func TestStubGuardAlwaysUnavailable(t *testing.T) {
	g := NewStubGuard()
	if g.Available() {
		t.Fatal("stub guard should never be available")
	}
	handle, ok := g.Protect(make([]byte, 4096))
	if ok || handle != -1 {
		t.Fatalf("stub Protect: got (%d, %v), want (-1, false)", handle, ok)
	}
	g.Unprotect(handle) // must not panic
}
