package secmem

import "github.com/memparanoid/redoubt/memzero"

// Secret wraps a single trivially copyable primitive (integers, floats,
// fixed-size value structs of those — never pointers, slices, or
// strings). The inner value is reachable only by borrow, so it cannot be
// duplicated by accident; construction and replacement are bitwise swaps
// that wipe the donor.
type Secret[T any] struct {
	v T
}

// NewSecret moves *donor into a fresh secret and wipes the donor.
func NewSecret[T any](donor *T) *Secret[T] {
	s := &Secret[T]{}
	s.Replace(donor)
	return s
}

// Replace swaps the inner value with *donor and wipes the donor.
func (s *Secret[T]) Replace(donor *T) {
	s.v, *donor = *donor, s.v
	memzero.WipeValue(donor)
}

// Expose borrows the inner value for reading or in-place mutation. The
// pointer must not outlive the secret, and the value must not be copied
// out through it.
func (s *Secret[T]) Expose() *T {
	return &s.v
}

// IsZero reports whether the inner value's byte image is all zero.
func (s *Secret[T]) IsZero() bool {
	return memzero.IsZeroValue(&s.v)
}

// Zeroize wipes the inner value.
func (s *Secret[T]) Zeroize() {
	memzero.WipeValue(&s.v)
}

func (s *Secret[T]) String() string   { return "REDACTED" }
func (s *Secret[T]) GoString() string { return "REDACTED" }
