package secmem

import (
	"fmt"

	"github.com/memparanoid/redoubt/memalloc"
	"github.com/memparanoid/redoubt/memzero"
)

// Buffer is a growable byte vector. Growth goes through the guarded
// allocator's safe reallocation, so an abandoned backing region is wiped
// before it is released; truncation wipes the dropped tail before the
// length moves.
type Buffer struct {
	b []byte // memalloc region; len(b) is the capacity
	n int    // logical length
}

// NewBuffer returns an empty buffer with no allocation.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferCap returns an empty buffer with capacity for n bytes.
func NewBufferCap(n int) *Buffer {
	if n == 0 {
		return &Buffer{}
	}
	b := memalloc.Alloc(n)
	memzero.Wipe(b)
	return &Buffer{b: b}
}

// Len returns the number of stored bytes.
func (v *Buffer) Len() int { return v.n }

// Cap returns the current capacity.
func (v *Buffer) Cap() int { return len(v.b) }

// Bytes borrows the stored bytes. The slice must not outlive the buffer.
func (v *Buffer) Bytes() []byte {
	return v.b[:v.n]
}

// PushFrom appends the donor byte and wipes the donor.
func (v *Buffer) PushFrom(donor *byte) {
	v.grow(v.n + 1)
	v.b[v.n], *donor = *donor, 0
	v.n++
}

// ExtendFrom appends the donor's bytes by element-wise swap, leaving the
// donor wiped.
func (v *Buffer) ExtendFrom(donor []byte) {
	if len(donor) == 0 {
		return
	}
	v.grow(v.n + len(donor))
	for i := range donor {
		v.b[v.n+i], donor[i] = donor[i], 0
	}
	v.n += len(donor)
	memzero.Wipe(donor)
}

// Truncate drops all bytes past n, wiping them before the length moves.
// Growing via Truncate is not possible; n past Len is a no-op.
func (v *Buffer) Truncate(n int) {
	if n < 0 || n >= v.n {
		return
	}
	memzero.Wipe(v.b[n:v.n])
	v.n = n
}

// Clear removes all bytes, wiping them. Capacity is retained.
func (v *Buffer) Clear() {
	v.Truncate(0)
}

// IsZero reports whether the whole capacity holds only zero bytes.
func (v *Buffer) IsZero() bool {
	return memzero.IsZero(v.b)
}

// Zeroize wipes the whole capacity and resets the length.
func (v *Buffer) Zeroize() {
	memzero.Wipe(v.b)
	v.n = 0
}

// Destroy wipes and releases the backing region.
func (v *Buffer) Destroy() {
	if v.b == nil {
		v.n = 0
		return
	}
	memalloc.Free(v.b)
	v.b = nil
	v.n = 0
}

// grow ensures capacity for need bytes. At least doubling, never less
// than strictly required; the old region is wiped by the allocator before
// release.
func (v *Buffer) grow(need int) {
	if need <= len(v.b) {
		return
	}
	newCap := len(v.b) * 2
	if newCap < need {
		newCap = need
	}
	if v.b == nil {
		v.b = memalloc.Alloc(newCap)
		memzero.Wipe(v.b)
		return
	}
	v.b = memalloc.Realloc(v.b, newCap)
	memzero.Wipe(v.b[v.n:])
}

func (v *Buffer) String() string   { return fmt.Sprintf("REDACTED(len=%d)", v.n) }
func (v *Buffer) GoString() string { return v.String() }
