// Package redoubt stores sensitive in-memory data encrypted at rest.
//
// A client declares a payload type whose fields are the trace-free
// containers from package secmem, implements (or generates) the small
// Payload contract for it, and wraps it in a Box bound to a vault. The
// box holds one ciphertext slot per field under the vault's master key;
// plaintext exists only inside an access callback, in scratch that is
// wiped on every exit path, and each access reseals the touched slots
// under fresh nonces.
//
// Fallible work against a field uses the leak-operate-commit pattern:
// LeakField hands out an owned, guard-wrapped copy while the slot stays
// intact; once the work succeeds, a non-fallible OpenFieldMut swaps the
// result in.
package redoubt

import (
	"github.com/memparanoid/redoubt/aegis"
	"github.com/memparanoid/redoubt/codec"
	"github.com/memparanoid/redoubt/entropy"
)

// The three error kinds of the public contract, re-exported so callers
// can match with errors.Is without importing the leaf packages.
var (
	// ErrAuth: AEAD tag verification failed. The slot is inaccessible;
	// no plaintext was exposed.
	ErrAuth = aegis.ErrAuth

	// ErrCodec: a decoded byte run was malformed. The box remains in its
	// prior sealed state.
	ErrCodec = codec.ErrMalformed

	// ErrRand: the OS entropy facility failed. Not recoverable.
	ErrRand = entropy.ErrEntropy
)

// Payload is the contract a type fulfills to live inside a Box. An
// implementation is typically generated from the type's field list; the
// box consumes nothing but this interface.
//
// Field order is fixed: index i in every method refers to the same
// field, and slot i of the box always corresponds to field i.
type Payload interface {
	// NumFields returns the number of secret-bearing fields.
	NumFields() int

	// FieldSizes returns the encoded slot size of each field in bytes.
	// For variable-length fields this is the maximum permitted size.
	FieldSizes() []int

	// FieldNames returns the declared field names, used for generated
	// accessor naming and audit metadata.
	FieldNames() []string

	// EncodeField drains field i into the encoder.
	EncodeField(i int, enc *codec.Encoder) error

	// DecodeField fills field i from the decoder, draining the consumed
	// bytes.
	DecodeField(i int, dec *codec.Decoder) error

	// Zeroize wipes every field in declaration order.
	Zeroize()

	// Destroy wipes every field and releases its backing storage. The
	// payload must not be used afterwards.
	Destroy()
}
