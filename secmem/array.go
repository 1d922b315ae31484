// Package secmem provides the trace-free container types: fixed arrays,
// growable buffers, UTF-8 strings, wrapped primitives, and optionals.
//
// The shared contract is that no operation — replace, push, grow,
// truncate, destroy — leaves a plaintext byte of any past value behind.
// Storage comes from memalloc, so reallocation wipes the abandoned region
// before it is released. Array, Buffer and String wipe on Destroy; Secret
// and Option have no Destroy and are wiped by Zeroize or Clear. None of the
// types can be value-copied through the API: construction and replacement
// consume mutable donors, which are wiped as their contents move in.
package secmem

import (
	"crypto/subtle"

	"github.com/memparanoid/redoubt/memalloc"
	"github.com/memparanoid/redoubt/memzero"
)

// Array is a fixed-length byte region. The length is chosen at
// construction and never changes.
type Array struct {
	b []byte
}

// NewArray returns a zero-initialized array of n bytes.
func NewArray(n int) *Array {
	b := memalloc.Alloc(n)
	memzero.Wipe(b)
	return &Array{b: b}
}

// Len returns the fixed length.
func (a *Array) Len() int {
	return len(a.b)
}

// Bytes borrows the backing region. The slice must not outlive the array
// and must never be copied into unmanaged storage.
func (a *Array) Bytes() []byte {
	return a.b
}

// ReplaceFrom swaps the array's contents with donor byte by byte, then
// wipes the donor. Donor length must equal Len; a mismatch is a
// programmer error and panics.
func (a *Array) ReplaceFrom(donor []byte) {
	if len(donor) != len(a.b) {
		panic("secmem: ReplaceFrom length mismatch")
	}
	for i := range a.b {
		a.b[i], donor[i] = donor[i], a.b[i]
	}
	memzero.Wipe(donor)
}

// EqualTo compares the contents against b in constant time.
func (a *Array) EqualTo(b []byte) bool {
	return subtle.ConstantTimeCompare(a.b, b) == 1
}

// IsZero reports whether every byte is zero.
func (a *Array) IsZero() bool {
	return memzero.IsZero(a.b)
}

// Zeroize overwrites the contents with zeros. The array stays usable.
func (a *Array) Zeroize() {
	memzero.Wipe(a.b)
}

// Destroy wipes and releases the backing region. The array must not be
// used afterwards.
func (a *Array) Destroy() {
	if a.b == nil {
		return
	}
	memalloc.Free(a.b)
	a.b = nil
}

func (a *Array) String() string   { return "REDACTED" }
func (a *Array) GoString() string { return "REDACTED" }
