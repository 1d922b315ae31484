package redoubt

import (
	"github.com/memparanoid/redoubt/codec"
	"github.com/memparanoid/redoubt/secmem"
)

// walletSecrets is the shape a client would declare; its Payload
// implementation below is written the way the generator emits it: field
// indices and slot sizes baked in, one switch arm per field, declaration
// order everywhere.
type walletSecrets struct {
	seed    *secmem.Array          // fixed 32 bytes
	phrase  *secmem.String         // variable, up to 128 bytes
	counter *secmem.Secret[uint64] // fixed primitive
}

const walletPhraseMax = 128

func newWalletSecrets() *walletSecrets {
	return &walletSecrets{
		seed:    secmem.NewArray(32),
		phrase:  secmem.NewString(),
		counter: &secmem.Secret[uint64]{},
	}
}

func (w *walletSecrets) NumFields() int { return 3 }

func (w *walletSecrets) FieldSizes() []int {
	return []int{32, 4 + walletPhraseMax, 8}
}

func (w *walletSecrets) FieldNames() []string {
	return []string{"seed", "phrase", "counter"}
}

func (w *walletSecrets) EncodeField(i int, enc *codec.Encoder) error {
	switch i {
	case 0:
		return enc.PutArray(w.seed)
	case 1:
		return enc.PutString(w.phrase)
	case 2:
		return codec.PutSecret(enc, w.counter)
	default:
		panic("walletSecrets: field index out of range")
	}
}

func (w *walletSecrets) DecodeField(i int, dec *codec.Decoder) error {
	switch i {
	case 0:
		return dec.DecodeArray(w.seed)
	case 1:
		return dec.DecodeString(w.phrase)
	case 2:
		return codec.DecodeSecret(dec, w.counter)
	default:
		panic("walletSecrets: field index out of range")
	}
}

func (w *walletSecrets) Zeroize() {
	w.seed.Zeroize()
	w.phrase.Zeroize()
	w.counter.Zeroize()
}

func (w *walletSecrets) Destroy() {
	w.seed.Destroy()
	w.phrase.Destroy()
	w.counter.Zeroize()
}

// singleField exercises the degenerate one-field box: a lone 32-byte
// array, the shape of scenario-style key storage.
type singleField struct {
	key *secmem.Array
}

func newSingleField() *singleField {
	return &singleField{key: secmem.NewArray(32)}
}

func (s *singleField) NumFields() int       { return 1 }
func (s *singleField) FieldSizes() []int    { return []int{32} }
func (s *singleField) FieldNames() []string { return []string{"key"} }

func (s *singleField) EncodeField(i int, enc *codec.Encoder) error {
	if i != 0 {
		panic("singleField: field index out of range")
	}
	return enc.PutArray(s.key)
}

func (s *singleField) DecodeField(i int, dec *codec.Decoder) error {
	if i != 0 {
		panic("singleField: field index out of range")
	}
	return dec.DecodeArray(s.key)
}

func (s *singleField) Zeroize() { s.key.Zeroize() }
func (s *singleField) Destroy() { s.key.Destroy() }

// emptyPayload is the zero-field degenerate case.
type emptyPayload struct{}

func newEmptyPayload() *emptyPayload { return &emptyPayload{} }

func (e *emptyPayload) NumFields() int                        { return 0 }
func (e *emptyPayload) FieldSizes() []int                     { return nil }
func (e *emptyPayload) FieldNames() []string                  { return nil }
func (e *emptyPayload) EncodeField(int, *codec.Encoder) error { panic("emptyPayload: no fields") }
func (e *emptyPayload) DecodeField(int, *codec.Decoder) error { panic("emptyPayload: no fields") }
func (e *emptyPayload) Zeroize()                              {}
func (e *emptyPayload) Destroy()                              {}
