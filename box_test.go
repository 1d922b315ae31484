package redoubt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memparanoid/redoubt/audit"
	"github.com/memparanoid/redoubt/secmem"
	"github.com/memparanoid/redoubt/vault"
)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := NewVault(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func newWalletBox(t *testing.T, v *vault.Vault) *Box[*walletSecrets] {
	t.Helper()
	b, err := NewBox(v, newWalletSecrets)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)
	return b
}

func TestBoxStartsAtZeroValues(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	allZero, err := Open(b, func(w *walletSecrets) bool {
		return w.seed.IsZero() && w.phrase.Len() == 0 && w.counter.IsZero()
	})
	require.NoError(t, err)
	assert.True(t, allZero)
}

func TestOpenMutRoundTrip(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	_, err := OpenMut(b, func(w *walletSecrets) struct{} {
		w.seed.ReplaceFrom(bytes.Repeat([]byte{0x5A}, 32))
		w.phrase.AppendFrom([]byte("abandon abandon about"))
		c := uint64(7)
		w.counter.Replace(&c)
		return struct{}{}
	})
	require.NoError(t, err)

	got, err := Open(b, func(w *walletSecrets) uint64 {
		assert.True(t, w.seed.EqualTo(bytes.Repeat([]byte{0x5A}, 32)))
		assert.Equal(t, "abandon abandon about", string(append([]byte(nil), w.phrase.Bytes()...)))
		return *w.counter.Expose()
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)
}

func TestOpenFieldMutTouchesOnlyItsSlot(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	otherNonce := b.SlotNonce(1)

	_, err := OpenFieldMut(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} {
			a.ReplaceFrom(bytes.Repeat([]byte{0xAA}, 32))
			return struct{}{}
		})
	require.NoError(t, err)

	assert.Equal(t, otherNonce, b.SlotNonce(1), "untouched slots keep their nonce")

	ok, err := OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) bool { return a.EqualTo(bytes.Repeat([]byte{0xAA}, 32)) })
	require.NoError(t, err)
	assert.True(t, ok)
}

// Scenario: field round trip through replace, leak, and guard drop.
func TestFieldReplaceThenLeak(t *testing.T) {
	v := newTestVault(t)
	b, err := NewBox(v, newSingleField)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	donor := bytes.Repeat([]byte{0xAA}, 32)
	_, err = OpenFieldMut(b, 0,
		func(s *singleField) *secmem.Array { return s.key },
		func(a *secmem.Array) struct{} {
			a.ReplaceFrom(donor)
			return struct{}{}
		})
	require.NoError(t, err)
	assert.True(t, memzeroIsZero(donor))

	leak, err := LeakField(b, 0, func(s *singleField) *secmem.Array { return s.key })
	require.NoError(t, err)

	got := leak.Value()
	assert.True(t, got.EqualTo(bytes.Repeat([]byte{0xAA}, 32)))

	// Destroy wipes the leaked copy before its region is released, by the
	// wipe-before-release step of memalloc.Free. Afterwards the handle is
	// dead.
	leak.Destroy()
	assert.True(t, leak.Destroyed())
	assert.Panics(t, func() { leak.Value() })
}

// Reseal freshness: three successive read-only field opens must leave
// three distinct slot nonces behind.
func TestResealFreshNonces(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	seen := map[string]bool{string(b.SlotNonce(0)): true}
	for i := 0; i < 3; i++ {
		_, err := OpenField(b, 0,
			func(w *walletSecrets) *secmem.Array { return w.seed },
			func(a *secmem.Array) struct{} { return struct{}{} })
		require.NoError(t, err)

		n := string(b.SlotNonce(0))
		assert.False(t, seen[n], "every reseal must draw a fresh nonce")
		seen[n] = true
	}
}

// LeakField must preserve the slot: the original ciphertext, nonce, and
// tag stay byte-for-byte intact and decrypt to the same value again.
func TestLeakPreservesSlot(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	_, err := OpenFieldMut(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} {
			a.ReplaceFrom(bytes.Repeat([]byte{0x11}, 32))
			return struct{}{}
		})
	require.NoError(t, err)

	before := b.SlotNonce(0)

	leak, err := LeakField(b, 0, func(w *walletSecrets) *secmem.Array { return w.seed })
	require.NoError(t, err)
	leak.Destroy()

	assert.Equal(t, before, b.SlotNonce(0), "leak must not reseal")

	ok, err := OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) bool { return a.EqualTo(bytes.Repeat([]byte{0x11}, 32)) })
	require.NoError(t, err)
	assert.True(t, ok)
}

// Leak-operate-commit: fallible work happens against the leaked copy;
// only a successful result is swapped in by a non-fallible commit.
func TestLeakOperateCommit(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	_, err := OpenFieldMut(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} {
			a.ReplaceFrom(bytes.Repeat([]byte{0x22}, 32))
			return struct{}{}
		})
	require.NoError(t, err)

	// Operate: the work against the leaked copy fails, so the copy is
	// dropped and nothing is committed.
	leak, err := LeakField(b, 0, func(w *walletSecrets) *secmem.Array { return w.seed })
	require.NoError(t, err)
	workErr := errors.New("derivation rejected")
	leak.Destroy()
	require.Error(t, workErr)

	// The box still decrypts to the original value.
	ok, err := OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) bool { return a.EqualTo(bytes.Repeat([]byte{0x22}, 32)) })
	require.NoError(t, err)
	assert.True(t, ok)

	// Second attempt succeeds: commit via an in-place swap.
	result := bytes.Repeat([]byte{0x33}, 32)
	_, err = OpenFieldMut(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} {
			a.ReplaceFrom(result)
			return struct{}{}
		})
	require.NoError(t, err)

	ok, err = OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) bool { return a.EqualTo(bytes.Repeat([]byte{0x33}, 32)) })
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCallbackValuePropagation(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	n, err := OpenFieldMut(b, 2,
		func(w *walletSecrets) *secmem.Secret[uint64] { return w.counter },
		func(c *secmem.Secret[uint64]) uint64 {
			p := c.Expose()
			*p = *p + 1
			return *p
		})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	n, err = OpenField(b, 2,
		func(w *walletSecrets) *secmem.Secret[uint64] { return w.counter },
		func(c *secmem.Secret[uint64]) uint64 { return *c.Expose() })
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestOversizedFieldIsCodecError(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	before := b.SlotNonce(1)

	// The phrase slot caps at walletPhraseMax bytes; growing past it
	// must fail the reseal with the codec kind and leave the slot
	// untouched.
	_, err := OpenFieldMut(b, 1,
		func(w *walletSecrets) *secmem.String { return w.phrase },
		func(s *secmem.String) struct{} {
			s.AppendFrom(bytes.Repeat([]byte{'a'}, walletPhraseMax+1))
			return struct{}{}
		})
	require.ErrorIs(t, err, ErrCodec)
	assert.Equal(t, before, b.SlotNonce(1), "failed call leaves the slot untouched")

	// The box remains usable and still holds the prior (empty) value.
	n, err := OpenField(b, 1,
		func(w *walletSecrets) *secmem.String { return w.phrase },
		func(s *secmem.String) int { return s.Len() })
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosedVaultSurfacesErrors(t *testing.T) {
	v, err := NewVault(Options{})
	require.NoError(t, err)
	b, err := NewBox(v, newWalletSecrets)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	require.NoError(t, v.Close())

	_, err = Open(b, func(w *walletSecrets) struct{} { return struct{}{} })
	require.Error(t, err)
}

func TestZeroFieldBox(t *testing.T) {
	v := newTestVault(t)
	b, err := NewBox(v, newEmptyPayload)
	require.NoError(t, err)

	assert.Zero(t, b.NumFields())

	_, err = Open(b, func(*emptyPayload) struct{} { return struct{}{} })
	require.NoError(t, err)
	_, err = OpenMut(b, func(*emptyPayload) struct{} { return struct{}{} })
	require.NoError(t, err)

	b.Destroy()
	b.Destroy() // idempotent
}

func TestReentrantAccessPanics(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	assert.Panics(t, func() {
		_, _ = Open(b, func(w *walletSecrets) struct{} {
			_, _ = Open(b, func(*walletSecrets) struct{} { return struct{}{} })
			return struct{}{}
		})
	})

	// The access token is released even on the panic path, so the box
	// keeps working afterwards.
	_, err := Open(b, func(*walletSecrets) struct{} { return struct{}{} })
	require.NoError(t, err)
}

func TestCallbackPanicLeavesBoxSealedAndUsable(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)

	before := b.SlotNonce(0)
	assert.Panics(t, func() {
		_, _ = OpenFieldMut(b, 0,
			func(w *walletSecrets) *secmem.Array { return w.seed },
			func(a *secmem.Array) struct{} { panic("callback exploded") })
	})

	assert.Equal(t, before, b.SlotNonce(0))
	_, err := OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} { return struct{}{} })
	require.NoError(t, err)
}

func TestUseAfterDestroyPanics(t *testing.T) {
	v := newTestVault(t)
	b, err := NewBox(v, newWalletSecrets)
	require.NoError(t, err)
	b.Destroy()

	assert.Panics(t, func() {
		_, _ = Open(b, func(*walletSecrets) struct{} { return struct{}{} })
	})
}

func TestBoxAuditTrail(t *testing.T) {
	ring := audit.NewMemoryLogger(128)
	v, err := NewVault(Options{AuditLogger: ring})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	b, err := NewBox(v, newWalletSecrets)
	require.NoError(t, err)
	t.Cleanup(b.Destroy)

	_, err = OpenField(b, 0,
		func(w *walletSecrets) *secmem.Array { return w.seed },
		func(a *secmem.Array) struct{} { return struct{}{} })
	require.NoError(t, err)

	res, err := ring.Query(audit.QueryOptions{Action: audit.ActionFieldOpen})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "seed", res.Events[0].Metadata["field"])
	assert.Equal(t, 0, res.Events[0].SlotIndex)
}

func TestFieldNames(t *testing.T) {
	v := newTestVault(t)
	b := newWalletBox(t, v)
	assert.Equal(t, []string{"seed", "phrase", "counter"}, b.FieldNames())
}

// memzeroIsZero avoids importing memzero just for assertions here.
func memzeroIsZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
