package redoubt

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/memparanoid/redoubt/audit"
	"github.com/memparanoid/redoubt/codec"
	"github.com/memparanoid/redoubt/memalloc"
	"github.com/memparanoid/redoubt/memzero"
	"github.com/memparanoid/redoubt/vault"
)

// Box holds a payload type's fields individually encrypted under the
// vault's master key: one slot (ciphertext run + nonce + tag) per field,
// laid out in a single arena and addressed by the static field index
// from the Payload contract.
//
// A box is not safe for concurrent use; callers share one behind their
// own lock. An access callback that re-enters the same box panics: the
// plaintext scratch is single-occupancy.
type Box[T Payload] struct {
	id    string
	vault *vault.Vault
	newT  func() T

	sizes []int
	names []string

	// live and stage use the same layout: all ciphertext runs, then all
	// nonces, then all tags. Mutating accesses seal into stage and
	// commit with an infallible copy, so a failed call never leaves the
	// live arena half-updated.
	live  []byte
	stage []byte

	ctOff    []int
	nonceOff []int
	tagOff   []int

	// Per-access scratch, sized for the largest field.
	ctScratch []byte
	ptScratch []byte

	busy      bool
	destroyed bool
}

// NewBox creates a box against v. newT must return a fresh, fully
// constructed zero-value payload; it is called once per access to build
// the plaintext scratch instance. Each slot starts as the encryption of
// the field's zero value.
func NewBox[T Payload](v *vault.Vault, newT func() T) (*Box[T], error) {
	probe := newT()
	sizes := append([]int(nil), probe.FieldSizes()...)
	names := append([]string(nil), probe.FieldNames()...)
	n := probe.NumFields()
	if len(sizes) != n || len(names) != n {
		probe.Destroy()
		panic("redoubt: payload metadata length mismatch")
	}
	if n > vault.MaxSlots {
		probe.Destroy()
		panic(fmt.Sprintf("redoubt: %d fields exceeds the %d-slot limit", n, vault.MaxSlots))
	}

	b := &Box[T]{
		id:    uuid.NewString(),
		vault: v,
		newT:  newT,
		sizes: sizes,
		names: names,
	}
	b.layout()

	// Seal the zero value of every field. The probe is drained by the
	// encoders as a side effect.
	err := b.sealAllInto(b.stage, probe)
	probe.Destroy()
	if err != nil {
		b.release()
		b.log(audit.ActionBoxCreate, false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	copy(b.live, b.stage)
	memzero.Wipe(b.stage)

	b.log(audit.ActionBoxCreate, true, nil)
	return b, nil
}

func (b *Box[T]) layout() {
	n := len(b.sizes)
	total := 0
	for _, s := range b.sizes {
		total += s
	}
	arena := total + n*(vault.NonceSize+vault.TagSize)

	b.ctOff = make([]int, n)
	b.nonceOff = make([]int, n)
	b.tagOff = make([]int, n)
	off := 0
	for i, s := range b.sizes {
		b.ctOff[i] = off
		off += s
	}
	for i := 0; i < n; i++ {
		b.nonceOff[i] = off
		off += vault.NonceSize
	}
	for i := 0; i < n; i++ {
		b.tagOff[i] = off
		off += vault.TagSize
	}

	maxSize := 0
	for _, s := range b.sizes {
		if s > maxSize {
			maxSize = s
		}
	}

	if arena > 0 {
		b.live = memalloc.Alloc(arena)
		b.stage = memalloc.Alloc(arena)
		memzero.Wipe(b.live)
		memzero.Wipe(b.stage)
	}
	if maxSize > 0 {
		b.ctScratch = memalloc.Alloc(maxSize)
		b.ptScratch = memalloc.Alloc(maxSize)
		memzero.Wipe(b.ctScratch)
		memzero.Wipe(b.ptScratch)
	}
}

func (b *Box[T]) ct(arena []byte, i int) []byte {
	return arena[b.ctOff[i] : b.ctOff[i]+b.sizes[i]]
}

func (b *Box[T]) nonce(arena []byte, i int) []byte {
	return arena[b.nonceOff[i] : b.nonceOff[i]+vault.NonceSize]
}

func (b *Box[T]) tag(arena []byte, i int) []byte {
	return arena[b.tagOff[i] : b.tagOff[i]+vault.TagSize]
}

// NumFields returns the slot count.
func (b *Box[T]) NumFields() int { return len(b.sizes) }

// FieldNames returns the payload's declared field names.
func (b *Box[T]) FieldNames() []string { return append([]string(nil), b.names...) }

// SlotNonce copies out slot i's current nonce. Nonces are public; tests
// use this to assert reseal freshness.
func (b *Box[T]) SlotNonce(i int) []byte {
	b.checkIndex(i)
	return append([]byte(nil), b.nonce(b.live, i)...)
}

// Destroy wipes and releases every slot and scratch region. The box must
// not be used afterwards. Idempotent.
func (b *Box[T]) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.release()
	b.log(audit.ActionBoxDestroy, true, nil)
}

func (b *Box[T]) release() {
	for _, r := range [][]byte{b.live, b.stage, b.ctScratch, b.ptScratch} {
		if r != nil {
			memalloc.Free(r)
		}
	}
	b.live, b.stage, b.ctScratch, b.ptScratch = nil, nil, nil, nil
}

// enter takes the single-occupancy access token. Recursive entry from a
// callback is a contract violation and aborts.
func (b *Box[T]) enter() {
	if b.destroyed {
		panic("redoubt: use of destroyed box")
	}
	if b.busy {
		panic("redoubt: recursive access to the same box from its own callback")
	}
	b.busy = true
}

func (b *Box[T]) leave() {
	b.busy = false
}

func (b *Box[T]) checkIndex(i int) {
	if i < 0 || i >= len(b.sizes) {
		panic(fmt.Sprintf("redoubt: field index %d out of range", i))
	}
}

// decodeField opens slot i into a field of the scratch payload. The live
// slot bytes are copied into scratch first and stay untouched; only the
// scratch copies are drained.
func (b *Box[T]) decodeField(t T, i int) error {
	size := b.sizes[i]
	ctS := b.ctScratch[:size]
	ptS := b.ptScratch[:size]
	copy(ctS, b.ct(b.live, i))

	if err := b.vault.OpenSlot(i, ctS, b.nonce(b.live, i), b.tag(b.live, i), ptS); err != nil {
		memzero.Wipe(ctS)
		return err
	}
	memzero.Wipe(ctS)

	dec := codec.NewDecoder(ptS)
	if err := t.DecodeField(i, dec); err != nil {
		// Decoder wiped the input; the partial field dies with the
		// scratch payload in the caller's cleanup.
		return err
	}
	dec.Finish()
	return nil
}

// encodeField drains field i of the scratch payload and seals it into
// the stage arena.
func (b *Box[T]) encodeField(t T, i int) error {
	size := b.sizes[i]
	ptS := b.ptScratch[:size]

	enc := codec.NewEncoder(ptS)
	if err := t.EncodeField(i, enc); err != nil {
		return err
	}

	err := b.vault.SealSlot(i, ptS, b.ct(b.stage, i), b.nonce(b.stage, i), b.tag(b.stage, i))
	memzero.Wipe(ptS)
	return err
}

// commitField publishes slot i from stage to live. Infallible; this is
// the single point where a mutating access becomes visible.
func (b *Box[T]) commitField(i int) {
	copy(b.ct(b.live, i), b.ct(b.stage, i))
	copy(b.nonce(b.live, i), b.nonce(b.stage, i))
	copy(b.tag(b.live, i), b.tag(b.stage, i))
	memzero.Wipe(b.ct(b.stage, i))
}

func (b *Box[T]) sealAllInto(arena []byte, t T) error {
	for i := range b.sizes {
		size := b.sizes[i]
		ptS := b.ptScratch[:size]
		enc := codec.NewEncoder(ptS)
		if err := t.EncodeField(i, enc); err != nil {
			memzero.Wipe(ptS)
			return err
		}
		err := b.vault.SealSlot(i, ptS, b.ct(arena, i), b.nonce(arena, i), b.tag(arena, i))
		memzero.Wipe(ptS)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Box[T]) log(action string, success bool, meta map[string]interface{}) {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["vault_id"] = b.vault.ID()
	meta["box_id"] = b.id
	_ = b.vault.Logger().Log(action, success, meta)
}

func (b *Box[T]) fieldMeta(i int, err error) map[string]interface{} {
	m := map[string]interface{}{"slot": i, "field": b.names[i]}
	if err != nil {
		m["error"] = err.Error()
	}
	return m
}
