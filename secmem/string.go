package secmem

import (
	"fmt"
	"unicode/utf8"

	"github.com/memparanoid/redoubt/memzero"
)

// String is a growable UTF-8 string over a Buffer. The byte sequence is
// valid UTF-8 at every observation point: appends are validated before
// any byte moves in.
type String struct {
	buf Buffer
}

// NewString returns an empty string with no allocation.
func NewString() *String {
	return &String{}
}

// Len returns the length in bytes.
func (s *String) Len() int { return s.buf.Len() }

// Bytes borrows the UTF-8 bytes. The slice must not outlive the string.
func (s *String) Bytes() []byte { return s.buf.Bytes() }

// AppendFrom appends the donor's bytes, which must be valid UTF-8 on
// their own, and wipes the donor. Invalid input leaves the string
// untouched, wipes the donor anyway, and reports false.
func (s *String) AppendFrom(donor []byte) bool {
	if !utf8.Valid(donor) {
		memzero.Wipe(donor)
		return false
	}
	s.buf.ExtendFrom(donor)
	return true
}

// AppendFromString drains donor into s, leaving donor empty and wiped.
func (s *String) AppendFromString(donor *String) {
	s.buf.ExtendFrom(donor.buf.Bytes())
	donor.buf.Clear()
}

// Clear removes all bytes, wiping them.
func (s *String) Clear() { s.buf.Clear() }

// IsZero reports whether the backing capacity holds only zero bytes.
func (s *String) IsZero() bool { return s.buf.IsZero() }

// Zeroize wipes the backing capacity and resets the length.
func (s *String) Zeroize() { s.buf.Zeroize() }

// Destroy wipes and releases the backing region.
func (s *String) Destroy() { s.buf.Destroy() }

func (s *String) String() string   { return fmt.Sprintf("REDACTED(len=%d)", s.buf.Len()) }
func (s *String) GoString() string { return s.String() }
