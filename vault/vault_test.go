package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memparanoid/redoubt/aegis"
	"github.com/memparanoid/redoubt/audit"
	"github.com/memparanoid/redoubt/memzero"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestSealOpenRoundTrip(t *testing.T) {
	v := newTestVault(t)

	msg := []byte("sixteen byte msg")
	ct := make([]byte, len(msg))
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)

	require.NoError(t, v.SealSlot(0, msg, ct, nonce, tag))
	assert.NotEqual(t, msg, ct)

	pt := make([]byte, len(ct))
	require.NoError(t, v.OpenSlot(0, ct, nonce, tag, pt))
	assert.Equal(t, msg, pt)
}

func TestSealOpenInPlace(t *testing.T) {
	v := newTestVault(t)

	buf := []byte("in-place payload")
	orig := append([]byte(nil), buf...)
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)

	require.NoError(t, v.SealSlot(3, buf, buf, nonce, tag))
	require.NoError(t, v.OpenSlot(3, buf, nonce, tag, buf))
	assert.Equal(t, orig, buf)
}

func TestOpenWrongSlotFailsAuth(t *testing.T) {
	v := newTestVault(t)

	msg := []byte("bound to slot 1")
	ct := make([]byte, len(msg))
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	require.NoError(t, v.SealSlot(1, msg, ct, nonce, tag))

	// The slot index is authenticated: the same record opened as slot 2
	// must fail, and no plaintext may come back.
	pt := make([]byte, len(ct))
	err := v.OpenSlot(2, ct, nonce, tag, pt)
	require.ErrorIs(t, err, aegis.ErrAuth)
	assert.True(t, memzero.IsZero(pt))
}

func TestOpenTamperedTagFailsAuth(t *testing.T) {
	v := newTestVault(t)

	msg := []byte("tamper target")
	ct := make([]byte, len(msg))
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	require.NoError(t, v.SealSlot(0, msg, ct, nonce, tag))

	tag[TagSize-1] ^= 0x01
	pt := make([]byte, len(ct))
	err := v.OpenSlot(0, ct, nonce, tag, pt)
	require.ErrorIs(t, err, aegis.ErrAuth)
	assert.True(t, memzero.IsZero(pt))
}

func TestSealDrawsFreshNonces(t *testing.T) {
	v := newTestVault(t)

	msg := []byte("nonce freshness")
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		ct := make([]byte, len(msg))
		nonce := make([]byte, NonceSize)
		tag := make([]byte, TagSize)
		require.NoError(t, v.SealSlot(0, msg, ct, nonce, tag))
		key := string(nonce)
		assert.False(t, seen[key], "nonce reuse")
		seen[key] = true
	}
}

func TestEmptyPlaintext(t *testing.T) {
	v := newTestVault(t)

	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	require.NoError(t, v.SealSlot(0, nil, nil, nonce, tag))
	require.NoError(t, v.OpenSlot(0, nil, nonce, tag, nil))
}

func TestClosedVaultRefusesOperations(t *testing.T) {
	v, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, v.Close())
	require.NoError(t, v.Close(), "close is idempotent")

	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	err = v.SealSlot(0, []byte("x"), make([]byte, 1), nonce, tag)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSlotIndexOutOfRangePanics(t *testing.T) {
	v := newTestVault(t)

	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	assert.Panics(t, func() {
		_ = v.SealSlot(MaxSlots, nil, nil, nonce, tag)
	})
	assert.Panics(t, func() {
		_ = v.SealSlot(-1, nil, nil, nonce, tag)
	})
}

func TestAuditTrail(t *testing.T) {
	ring := audit.NewMemoryLogger(64)
	v, err := New(Config{Audit: ring})
	require.NoError(t, err)
	defer v.Close()

	msg := []byte("audited")
	ct := make([]byte, len(msg))
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	require.NoError(t, v.SealSlot(0, msg, ct, nonce, tag))

	res, err := ring.Query(audit.QueryOptions{Action: audit.ActionSlotSeal})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.True(t, e.Success)
	assert.Equal(t, v.ID(), e.VaultID)
	assert.Equal(t, 0, e.SlotIndex)
}

func TestVaultsHaveDistinctKeys(t *testing.T) {
	a := newTestVault(t)
	b := newTestVault(t)

	msg := []byte("cross-vault")
	ct := make([]byte, len(msg))
	nonce := make([]byte, NonceSize)
	tag := make([]byte, TagSize)
	require.NoError(t, a.SealSlot(0, msg, ct, nonce, tag))

	pt := make([]byte, len(ct))
	err := b.OpenSlot(0, ct, nonce, tag, pt)
	require.ErrorIs(t, err, aegis.ErrAuth)
}
