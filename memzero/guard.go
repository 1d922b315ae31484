package memzero

import "runtime"

// Zeroizable is implemented by every trace-free value in this module.
// Zeroize must leave all owned storage holding only zero bytes; it must be
// safe to call more than once.
type Zeroizable interface {
	Zeroize()
}

// Guard scopes ownership of a leaked plaintext value. Whatever path the
// caller takes, Destroy zeroizes the payload; a finalizer backs up callers
// that forget, though relying on it surrenders the timing guarantee.
type Guard[T Zeroizable] struct {
	value     T
	destroyed bool
}

// NewGuard wraps v in a guard. The guard owns v from this point on; the
// caller must not retain other references to it.
func NewGuard[T Zeroizable](v T) *Guard[T] {
	g := &Guard[T]{value: v}
	runtime.SetFinalizer(g, func(g *Guard[T]) {
		g.Destroy()
	})
	return g
}

// Value returns the guarded value. The reference must not outlive the
// guard.
func (g *Guard[T]) Value() T {
	return g.value
}

// Destroy zeroizes the payload. Idempotent.
func (g *Guard[T]) Destroy() {
	if g.destroyed {
		return
	}
	g.destroyed = true
	// Containers that own out-of-heap storage release it here; everything
	// else is wiped in place.
	if d, ok := any(g.value).(interface{ Destroy() }); ok {
		d.Destroy()
	} else {
		g.value.Zeroize()
	}
	runtime.SetFinalizer(g, nil)
}

// Destroyed reports whether Destroy has run.
func (g *Guard[T]) Destroyed() bool {
	return g.destroyed
}
