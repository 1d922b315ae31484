//go:build linux || darwin || freebsd || openbsd || netbsd || dragonfly

package memalloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func allocPlatform(n int) ([]byte, error) {
	size := roundToPage(n)
	raw, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	// Best effort: pin the pages and keep them out of core dumps. EPERM or
	// ENOMEM from an unprivileged mlock is not a failure; the region is
	// still usable, just swappable.
	locked := unix.Mlock(raw) == nil
	_ = madviseDontDump(raw)

	b := raw[:n:n]
	mu.Lock()
	regions[sliceAddr(b)] = mapping{raw: raw, n: n, locked: locked}
	mu.Unlock()
	return b, nil
}

func freePlatform(b []byte) error {
	mu.Lock()
	m, ok := regions[sliceAddr(b)]
	if ok {
		delete(regions, sliceAddr(b))
	}
	mu.Unlock()
	if !ok {
		panic("memalloc: Free of a region not owned by this allocator")
	}
	if m.locked {
		_ = unix.Munlock(m.raw)
	}
	return unix.Munmap(m.raw)
}

func sliceAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func roundToPage(n int) int {
	page := unix.Getpagesize()
	return (n + page - 1) / page * page
}
