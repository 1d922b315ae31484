// Package memalloc is the allocation substrate for the trace-free
// container types. Regions come from mmap rather than the Go heap so the
// runtime never moves, duplicates, or silently recycles them; Free wipes
// every byte before the region goes back to the kernel, and Realloc never
// reuses a region in place.
//
// Locking a region into physical memory and excluding it from core dumps
// are attempted on every allocation but are advisory: a host without the
// privilege degrades to plain anonymous pages.
package memalloc

import (
	"fmt"
	"os"
	"sync"

	"github.com/memparanoid/redoubt/memzero"
)

// regions tracks live mmap'd slices by the address of their first byte so
// Free and Realloc can recover the full mapping from a caller-held slice.
var (
	mu      sync.Mutex
	regions = map[uintptr]mapping{}
)

type mapping struct {
	raw    []byte // full mapping, page-aligned
	n      int    // requested length
	locked bool
}

// Alloc returns an uninitialized region of n bytes. n must be positive.
// Allocation failure is fatal: the process aborts rather than handing a
// secret-bearing caller a nil region.
func Alloc(n int) []byte {
	if n <= 0 {
		fatal(fmt.Errorf("memalloc: invalid allocation size %d", n))
	}
	b, err := allocPlatform(n)
	if err != nil {
		fatal(fmt.Errorf("memalloc: allocation of %d bytes failed: %w", n, err))
	}
	return b
}

// Free wipes the entire region and releases it. b must be a slice returned
// by Alloc or Realloc, unresized. Passing any other slice panics.
func Free(b []byte) {
	if len(b) == 0 {
		return
	}
	memzero.Wipe(b)
	if err := freePlatform(b); err != nil {
		fatal(fmt.Errorf("memalloc: release failed: %w", err))
	}
}

// Realloc moves the contents of old into a fresh region of n bytes and
// releases old. The sequence is fixed: allocate new, copy min(len(old), n)
// bytes, wipe old completely, release old. The old region is never grown
// or shrunk in place, so no plaintext byte survives at its address.
func Realloc(old []byte, n int) []byte {
	fresh := Alloc(n)
	copy(fresh, old)
	Free(old)
	return fresh
}

// Locked reports whether the region is pinned in physical memory. Test
// and diagnostics hook; callers must not branch on it for correctness.
func Locked(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	mu.Lock()
	defer mu.Unlock()
	m, ok := regions[sliceAddr(b)]
	return ok && m.locked
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
