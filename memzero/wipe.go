// Package memzero provides optimizer-proof zeroization of byte regions.
//
// Every other package in this module routes its cleanup through Wipe or
// WipeVolatile. The guarantee is narrow and deliberate: after the call
// returns, every byte of the region reads zero and the compiler has not
// removed the stores as dead.
package memzero

import "unsafe"

// wipeFunc performs the actual zeroing. Routing the loop through a
// package-level function variable keeps the compiler from proving the
// stores dead and eliding them: a function variable can be reassigned at
// any time, so the call cannot be devirtualized or inlined away.
var wipeFunc = func(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Wipe overwrites b with zeros. This is the fast form; the stores survive
// optimization because they happen behind the opaque wipeFunc call.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	wipeFunc(b)
}

// WipeVolatile overwrites b with zeros one byte at a time through a
// non-inlinable store. Fallback for regions where the fast form cannot be
// proven retained (e.g. stack copies about to go out of scope).
func WipeVolatile(b []byte) {
	for i := range b {
		volatileStore(&b[i])
	}
}

//go:noinline
func volatileStore(p *byte) {
	*p = 0
}

// WipeValue overwrites the in-memory image of *v with zeros. v must point
// at a trivially copyable value: no pointers, no strings, no slices.
func WipeValue[T any](v *T) {
	size := unsafe.Sizeof(*v)
	if size == 0 {
		return
	}
	Wipe(unsafe.Slice((*byte)(unsafe.Pointer(v)), size))
}

// IsZero reports whether every byte of b is zero. Test helper used to
// verify drain and drop invariants without dumping process memory.
func IsZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}

// IsZeroValue reports whether the in-memory image of *v is all zero bytes.
// Same restrictions as WipeValue.
func IsZeroValue[T any](v *T) bool {
	size := unsafe.Sizeof(*v)
	if size == 0 {
		return true
	}
	return IsZero(unsafe.Slice((*byte)(unsafe.Pointer(v)), size))
}
