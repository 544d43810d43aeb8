//go:build unix

package mpuguard

import (
	"testing"

	"zoneheap/internal/mmap"
)

const testPageSize = 4096

func TestUnixGuardProtectUnprotect(t *testing.T) {
	g := NewUnixGuard(0)
	if !g.Available() {
		t.Fatal("unix guard should report available")
	}

	region, err := mmap.MapAnon(testPageSize)
	if err != nil {
		t.Fatalf("MapAnon: %v", err)
	}
	defer mmap.UnmapAnon(region)

	handle, ok := g.Protect(region)
	if !ok || handle < 0 {
		t.Fatalf("Protect: got (%d, %v), want a valid handle", handle, ok)
	}
	g.Unprotect(handle)

	// Region should be writable again; a second Unprotect of the same
	// handle must be a tolerated no-op (mirrors shutdown-time
	// double-unprotect tolerance).
	region[0] = 0x7F
	g.Unprotect(handle)
}

func TestUnixGuardHandlesAreNotReused(t *testing.T) {
	g := NewUnixGuard(0)
	r1, _ := mmap.MapAnon(testPageSize)
	r2, _ := mmap.MapAnon(testPageSize)
	defer mmap.UnmapAnon(r1)
	defer mmap.UnmapAnon(r2)

	h1, ok1 := g.Protect(r1)
	h2, ok2 := g.Protect(r2)
	if !ok1 || !ok2 {
		t.Fatal("expected both protections to succeed")
	}
	if h1 == h2 {
		t.Fatal("expected distinct handles for distinct regions")
	}

	g.Unprotect(h1)
	h3, ok3 := g.Protect(r1)
	if !ok3 || h3 == h1 {
		t.Fatalf("expected a fresh handle after releasing %d, got (%d, %v)", h1, h3, ok3)
	}
}

func TestUnixGuardRejectsProtectPastMaxRegions(t *testing.T) {
	g := NewUnixGuard(1)
	r1, _ := mmap.MapAnon(testPageSize)
	r2, _ := mmap.MapAnon(testPageSize)
	defer mmap.UnmapAnon(r1)
	defer mmap.UnmapAnon(r2)

	if _, ok := g.Protect(r1); !ok {
		t.Fatal("expected the first protect to succeed")
	}
	if _, ok := g.Protect(r2); ok {
		t.Fatal("expected the second protect to fail once maxRegions is exhausted")
	}
}
