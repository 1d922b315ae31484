package secmem

import "github.com/memparanoid/redoubt/memzero"

// Option represents presence or absence of a trace-free container.
// Dropping to absent zeroizes the payload first; moving to present
// consumes a donor container. The zero Option is absent.
type Option[C memzero.Zeroizable] struct {
	present bool
	value   C
}

// NewOption returns an absent option.
func NewOption[C memzero.Zeroizable]() *Option[C] {
	return &Option[C]{}
}

// IsPresent reports whether a payload is held.
func (o *Option[C]) IsPresent() bool { return o.present }

// Get borrows the payload. The second return is false when absent.
func (o *Option[C]) Get() (C, bool) {
	return o.value, o.present
}

// Set moves donor in as the payload. A previously held payload is
// zeroized first. The option owns donor from this point on.
func (o *Option[C]) Set(donor C) {
	if o.present {
		o.dropPayload()
	}
	o.value = donor
	o.present = true
}

// Clear transitions to absent, zeroizing any held payload.
func (o *Option[C]) Clear() {
	if !o.present {
		return
	}
	o.dropPayload()
	var zero C
	o.value = zero
	o.present = false
}

// Zeroize is Clear; it exists so Option satisfies the container contract.
func (o *Option[C]) Zeroize() { o.Clear() }

func (o *Option[C]) dropPayload() {
	if d, ok := any(o.value).(interface{ Destroy() }); ok {
		d.Destroy()
	} else {
		o.value.Zeroize()
	}
}

func (o *Option[C]) String() string {
	if o.present {
		return "REDACTED(present)"
	}
	return "REDACTED(absent)"
}

func (o *Option[C]) GoString() string { return o.String() }
