// Package codec serializes trace-free containers into fixed-layout byte
// runs and back. Encoding is deterministic and allocation-free: the
// caller supplies the slot, a cursor walks it. Both directions drain:
// encoding wipes the source container as its contents move out, decoding
// wipes the slot bytes as they are consumed, and every error path wipes
// input and partial output before returning.
//
// Wire format, per field kind:
//
//	secret primitive   raw byte image, little-endian on every host
//	fixed array        raw bytes
//	buffer / string    4-byte little-endian length prefix, then bytes
//	optional           1-byte tag (0 absent, 1 present), then inner
//	nested struct      concatenation of its field encodings
package codec

import (
	"errors"
	"unsafe"
)

// ErrMalformed is the kind for every format error: short input,
// over-length prefix, invalid optional tag, invalid UTF-8, or a value
// that does not fit its slot.
var ErrMalformed = errors.New("codec: malformed input")

func malformed(what string) error {
	return errors.Join(ErrMalformed, errors.New(what))
}

// hostLittleEndian reports the byte order of this machine.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// valueImage returns the byte image of *v, which must be a trivially
// copyable value of size 1, 2, 4, or 8.
func valueImage[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	switch size {
	case 1, 2, 4, 8:
	default:
		panic("codec: secret primitive must be 1, 2, 4, or 8 bytes")
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func getUint32(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}
