package codec

import (
	"unicode/utf8"

	"github.com/memparanoid/redoubt/memzero"
	"github.com/memparanoid/redoubt/secmem"
)

// Decoder reads field encodings out of a mutable slot, wiping each byte
// run as it is consumed. On any format error the whole remaining slot is
// wiped; the caller is responsible for zeroizing whatever partial output
// it accumulated (the container helpers here do so for the field being
// decoded).
type Decoder struct {
	buf    []byte
	off    int
	failed bool
}

// NewDecoder wraps a mutable slot holding encoded plaintext.
func NewDecoder(slot []byte) *Decoder {
	return &Decoder{buf: slot}
}

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Failed reports whether a prior read hit a format error.
func (d *Decoder) Failed() bool { return d.failed }

func (d *Decoder) fail(what string) error {
	d.failed = true
	memzero.Wipe(d.buf)
	d.off = len(d.buf)
	return malformed(what)
}

// take consumes n bytes. The returned slice is valid until the next call;
// the caller must wipe it once copied out.
func (d *Decoder) take(n int) ([]byte, error) {
	if d.failed {
		return nil, malformed("decode: decoder already failed")
	}
	if d.off+n > len(d.buf) {
		return nil, d.fail("decode: input too short")
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Finish wipes any unconsumed padding. Call once all fields are decoded.
func (d *Decoder) Finish() {
	memzero.Wipe(d.buf[d.off:])
	d.off = len(d.buf)
}

// DecodeSecret reads the little-endian byte image of the primitive into
// the secret, wiping the consumed slot bytes.
func DecodeSecret[T any](d *Decoder, s *secmem.Secret[T]) error {
	img := valueImage(s.Expose())
	src, err := d.take(len(img))
	if err != nil {
		s.Zeroize()
		return err
	}
	copy(img, src)
	if !hostLittleEndian {
		reverse(img)
	}
	memzero.Wipe(src)
	return nil
}

// DecodeArray fills the array from its raw encoding, wiping the consumed
// slot bytes.
func (d *Decoder) DecodeArray(a *secmem.Array) error {
	src, err := d.take(a.Len())
	if err != nil {
		a.Zeroize()
		return err
	}
	copy(a.Bytes(), src)
	memzero.Wipe(src)
	return nil
}

// DecodeBuffer reads a length-prefixed byte run into the buffer. An
// over-length prefix is a format error.
func (d *Decoder) DecodeBuffer(v *secmem.Buffer) error {
	hdr, err := d.take(4)
	if err != nil {
		v.Zeroize()
		return err
	}
	n := int(getUint32(hdr))
	memzero.Wipe(hdr)
	if n > d.Remaining() {
		v.Zeroize()
		return d.fail("decode: length prefix exceeds input")
	}
	src, err := d.take(n)
	if err != nil {
		v.Zeroize()
		return err
	}
	v.Clear()
	v.ExtendFrom(src) // drains src
	return nil
}

// DecodeString reads a length-prefixed byte run that must be valid
// UTF-8. Invalid bytes are a format error: the input and the partial
// string are wiped.
func (d *Decoder) DecodeString(s *secmem.String) error {
	hdr, err := d.take(4)
	if err != nil {
		s.Zeroize()
		return err
	}
	n := int(getUint32(hdr))
	memzero.Wipe(hdr)
	if n > d.Remaining() {
		s.Zeroize()
		return d.fail("decode: length prefix exceeds input")
	}
	src, err := d.take(n)
	if err != nil {
		s.Zeroize()
		return err
	}
	if !utf8.Valid(src) {
		s.Zeroize()
		memzero.Wipe(src)
		return d.fail("decode: invalid UTF-8 in string field")
	}
	s.Clear()
	s.AppendFrom(src) // drains src
	return nil
}

// DecodeOption reads the presence tag; when present, newC constructs a
// fresh inner container and inner decodes into it before the option
// adopts it. Tag values other than 0 and 1 are format errors.
func DecodeOption[C memzero.Zeroizable](d *Decoder, o *secmem.Option[C], newC func() C, inner func(C) error) error {
	tag, err := d.take(1)
	if err != nil {
		o.Clear()
		return err
	}
	t := tag[0]
	memzero.Wipe(tag)
	switch t {
	case 0:
		o.Clear()
		return nil
	case 1:
		v := newC()
		if err := inner(v); err != nil {
			if dd, ok := any(v).(interface{ Destroy() }); ok {
				dd.Destroy()
			} else {
				v.Zeroize()
			}
			o.Clear()
			return err
		}
		o.Set(v)
		return nil
	default:
		o.Clear()
		return d.fail("decode: invalid optional tag")
	}
}
