//go:build windows

package mmap

import "errors"

var ErrNotSupported = errors.New("mmap not supported on windows")

// MapAnon has no implementation on windows and always returns
// ErrNotSupported.
func MapAnon(size int) ([]byte, error) {
	return nil, ErrNotSupported
}

func UnmapAnon(data []byte) error {
	return nil
}

func Protect(data []byte) error {
	return ErrNotSupported
}

func Unprotect(data []byte) error {
	return ErrNotSupported
}
