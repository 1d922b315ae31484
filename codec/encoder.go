package codec

import (
	"github.com/memparanoid/redoubt/memzero"
	"github.com/memparanoid/redoubt/secmem"
)

// Encoder writes field encodings into a caller-provided slot. Any write
// that would overrun the slot fails the encoder, wipes everything written
// so far, and wipes the rest of the source as usual — a failed encoder
// leaves no plaintext behind in either direction.
type Encoder struct {
	buf    []byte
	off    int
	failed bool
}

// NewEncoder wraps slot. The slot's prior contents are wiped.
func NewEncoder(slot []byte) *Encoder {
	memzero.Wipe(slot)
	return &Encoder{buf: slot}
}

// Written returns the number of bytes encoded so far.
func (e *Encoder) Written() int { return e.off }

// Remaining returns the free space left in the slot.
func (e *Encoder) Remaining() int { return len(e.buf) - e.off }

// Failed reports whether a prior write overran the slot.
func (e *Encoder) Failed() bool { return e.failed }

func (e *Encoder) fail() error {
	e.failed = true
	memzero.Wipe(e.buf)
	e.off = 0
	return malformed("encode: value exceeds slot capacity")
}

func (e *Encoder) reserve(n int) ([]byte, error) {
	if e.failed {
		return nil, malformed("encode: encoder already failed")
	}
	if e.off+n > len(e.buf) {
		return nil, e.fail()
	}
	b := e.buf[e.off : e.off+n]
	e.off += n
	return b, nil
}

// PutSecret encodes the secret's primitive as its little-endian byte
// image and drains the secret.
func PutSecret[T any](e *Encoder, s *secmem.Secret[T]) error {
	img := valueImage(s.Expose())
	dst, err := e.reserve(len(img))
	if err != nil {
		s.Zeroize()
		return err
	}
	copy(dst, img)
	if !hostLittleEndian {
		reverse(dst)
	}
	s.Zeroize()
	return nil
}

// PutArray encodes the array's raw bytes and drains the array.
func (e *Encoder) PutArray(a *secmem.Array) error {
	dst, err := e.reserve(a.Len())
	if err != nil {
		a.Zeroize()
		return err
	}
	copy(dst, a.Bytes())
	a.Zeroize()
	return nil
}

// PutBuffer encodes a 4-byte little-endian length prefix followed by the
// buffer's bytes, draining the buffer.
func (e *Encoder) PutBuffer(v *secmem.Buffer) error {
	dst, err := e.reserve(4 + v.Len())
	if err != nil {
		v.Zeroize()
		return err
	}
	putUint32(dst[:4], uint32(v.Len()))
	copy(dst[4:], v.Bytes())
	v.Zeroize()
	return nil
}

// PutString encodes the string like a buffer, draining it.
func (e *Encoder) PutString(s *secmem.String) error {
	dst, err := e.reserve(4 + s.Len())
	if err != nil {
		s.Zeroize()
		return err
	}
	putUint32(dst[:4], uint32(s.Len()))
	copy(dst[4:], s.Bytes())
	s.Zeroize()
	return nil
}

// PutOption encodes a 1-byte presence tag; when present, inner is called
// to encode the payload, then the option is cleared (which zeroizes the
// payload).
func PutOption[C memzero.Zeroizable](e *Encoder, o *secmem.Option[C], inner func(C) error) error {
	v, present := o.Get()
	if !present {
		dst, err := e.reserve(1)
		if err != nil {
			return err
		}
		dst[0] = 0
		return nil
	}
	dst, err := e.reserve(1)
	if err != nil {
		o.Clear()
		return err
	}
	dst[0] = 1
	if err := inner(v); err != nil {
		o.Clear()
		return err
	}
	o.Clear()
	return nil
}
