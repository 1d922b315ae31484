package redoubt

import (
	"github.com/memparanoid/redoubt/codec"
	"github.com/memparanoid/redoubt/secmem"
)

// profileSecrets covers the remaining field kinds: a growable buffer and
// an optional container.
type profileSecrets struct {
	blob   *secmem.Buffer                 // variable, up to 64 bytes
	backup *secmem.Option[*secmem.Buffer] // optional, inner up to 64 bytes
}

const profileBlobMax = 64

func newProfileSecrets() *profileSecrets {
	return &profileSecrets{
		blob:   secmem.NewBuffer(),
		backup: secmem.NewOption[*secmem.Buffer](),
	}
}

func (p *profileSecrets) NumFields() int { return 2 }

func (p *profileSecrets) FieldSizes() []int {
	return []int{4 + profileBlobMax, 1 + 4 + profileBlobMax}
}

func (p *profileSecrets) FieldNames() []string {
	return []string{"blob", "backup"}
}

func (p *profileSecrets) EncodeField(i int, enc *codec.Encoder) error {
	switch i {
	case 0:
		return enc.PutBuffer(p.blob)
	case 1:
		return codec.PutOption(enc, p.backup, func(v *secmem.Buffer) error {
			return enc.PutBuffer(v)
		})
	default:
		panic("profileSecrets: field index out of range")
	}
}

func (p *profileSecrets) DecodeField(i int, dec *codec.Decoder) error {
	switch i {
	case 0:
		return dec.DecodeBuffer(p.blob)
	case 1:
		return codec.DecodeOption(dec, p.backup,
			func() *secmem.Buffer { return secmem.NewBuffer() },
			func(v *secmem.Buffer) error { return dec.DecodeBuffer(v) },
		)
	default:
		panic("profileSecrets: field index out of range")
	}
}

func (p *profileSecrets) Zeroize() {
	p.blob.Zeroize()
	p.backup.Zeroize()
}

func (p *profileSecrets) Destroy() {
	p.blob.Destroy()
	p.backup.Clear()
}
