package redoubt

import "runtime"

// Leak scopes an owned plaintext copy of a single field produced by
// LeakField. The copy lives inside a private scratch payload; Destroy
// wipes and releases it. A finalizer backs up callers that forget, at
// the cost of the timing guarantee.
type Leak[T Payload, F any] struct {
	payload   T
	field     F
	destroyed bool
}

func newLeak[T Payload, F any](payload T, field F) *Leak[T, F] {
	l := &Leak[T, F]{payload: payload, field: field}
	runtime.SetFinalizer(l, func(l *Leak[T, F]) {
		l.Destroy()
	})
	return l
}

// Value borrows the leaked field. The reference must not outlive the
// leak.
func (l *Leak[T, F]) Value() F {
	if l.destroyed {
		panic("redoubt: use of destroyed leak")
	}
	return l.field
}

// Destroy wipes the leaked copy. Idempotent.
func (l *Leak[T, F]) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	l.payload.Destroy()
	runtime.SetFinalizer(l, nil)
}

// Destroyed reports whether Destroy has run.
func (l *Leak[T, F]) Destroyed() bool {
	return l.destroyed
}
