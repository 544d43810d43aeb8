//go:build unix

package mmap

import (
	"golang.org/x/sys/unix"
)

// MapAnon carves out size bytes of anonymous, zero-filled memory not backed
// by any file. It is the backing store for a zone's arena: unlike a plain
// make([]byte, size), the returned slice is mprotect-able, so Protect can
// later turn a quarantined range of it read-only.
func MapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// UnmapAnon releases memory obtained from MapAnon.
func UnmapAnon(data []byte) error {
	return unix.Munmap(data)
}

// Protect marks data read-only, causing any write into it to fault. data
// must be (or be a sub-slice of) a region obtained from MapAnon, since
// mprotect operates on whole pages and the caller is responsible for page
// alignment.
func Protect(data []byte) error {
	return unix.Mprotect(data, unix.PROT_READ)
}

// Unprotect restores read-write access to a region previously passed to
// Protect.
func Unprotect(data []byte) error {
	return unix.Mprotect(data, unix.PROT_READ|unix.PROT_WRITE)
}
