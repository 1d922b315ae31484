// Package vault owns the process-resident master key and exposes
// authenticated encryption over numbered ciphertext slots to the cipher
// boxes built on it.
//
// The 16-byte key is generated at construction from OS entropy through
// HKDF domain separation, then immediately sealed into a memguard
// enclave: between operations the key exists only encrypted, inside
// locked, canary-guarded pages, and each seal or open decrypts it into a
// locked buffer for just the duration of the call. The key bytes are
// never handed to a caller.
package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/memparanoid/redoubt/aegis"
	"github.com/memparanoid/redoubt/audit"
	"github.com/memparanoid/redoubt/entropy"
	"github.com/memparanoid/redoubt/internal/debug"
	"github.com/memparanoid/redoubt/internal/mem"
	"github.com/memparanoid/redoubt/memzero"
)

const (
	// MasterKeySize is the AEGIS-128L key length.
	MasterKeySize = aegis.KeySize
	// NonceSize is the per-slot stored nonce length. AEGIS-128L consumes
	// 16 bytes; the high 4 are fixed zero padding and not stored.
	NonceSize = 12
	// TagSize is the per-slot authentication tag length.
	TagSize = aegis.TagSize

	// MaxSlots bounds the slot index so the one-byte associated data
	// encoding can never be ambiguous.
	MaxSlots = 256

	keyDomain = "redoubt.master_key.v1"
)

// ErrClosed is returned by operations on a closed vault.
var ErrClosed = errors.New("vault: closed")

func init() {
	// Wipe all memguard-held material if the process is interrupted.
	memguard.CatchInterrupt()
}

// Config carries construction options. The zero value is valid.
type Config struct {
	// Audit receives security events; nil selects the no-op logger.
	Audit audit.Logger

	// DisableMemoryLock skips the best-effort mlockall attempt.
	DisableMemoryLock bool

	// DisableHardening skips the one-time prctl/rlimit process guard.
	DisableHardening bool
}

// Vault holds the master key and performs all AEAD on behalf of the
// boxes constructed against it.
type Vault struct {
	id         string
	keyEnclave *memguard.Enclave
	audit      audit.Logger
	protection mem.ProtectionLevel
	guard      mem.GuardStatus

	mu     sync.Mutex
	closed bool
}

// New constructs a vault with a fresh master key.
func New(cfg Config) (*Vault, error) {
	logger := cfg.Audit
	if logger == nil {
		logger = audit.NewNoOpLogger()
	}

	v := &Vault{
		id:    uuid.NewString(),
		audit: logger,
	}

	if !cfg.DisableHardening {
		v.guard = mem.GuardProcess()
		if !v.guard.PrctlSucceeded {
			debug.Print("vault %s: prctl hardening unavailable\n", v.id)
		}
	}

	if !cfg.DisableMemoryLock {
		level, err := mem.Lock()
		if err != nil {
			// Advisory: an unlockable host degrades, it does not fail.
			debug.Print("vault %s: memory lock failed: %v\n", v.id, err)
			level = mem.ProtectionNone
		}
		v.protection = level
	}

	key := memguard.NewBuffer(MasterKeySize)
	if err := entropy.GenerateKey([]byte(keyDomain), key.Bytes()); err != nil {
		key.Destroy()
		v.log(audit.ActionVaultCreate, false, map[string]interface{}{
			"vault_id": v.id, "error": err.Error(),
		})
		return nil, fmt.Errorf("vault: master key generation: %w", err)
	}
	// Seal destroys the plaintext buffer; from here the key at rest is
	// ciphertext inside locked pages.
	v.keyEnclave = key.Seal()

	v.log(audit.ActionVaultCreate, true, map[string]interface{}{
		"vault_id": v.id,
	})
	return v, nil
}

// ID returns the vault's opaque identifier, used only in audit events.
func (v *Vault) ID() string { return v.id }

// Protection reports the memory protection level achieved at
// construction.
func (v *Vault) Protection() mem.ProtectionLevel { return v.protection }

// Logger exposes the audit sink so boxes built on this vault share it.
func (v *Vault) Logger() audit.Logger { return v.audit }

// Hardening reports the outcome of the process-level guard applied at
// construction. Both fields are false when hardening was disabled or the
// host does not support it.
func (v *Vault) Hardening() mem.GuardStatus { return v.guard }

// SealSlot encrypts plaintext into ct (same length), drawing a fresh
// nonce into nonce and writing the tag into tag. ct may alias plaintext
// for in-place sealing. The associated data binds the ciphertext to the
// slot index, so a slot's record cannot be replayed into another slot.
func (v *Vault) SealSlot(slot int, plaintext, ct, nonce, tag []byte) error {
	checkSlotParams(slot, len(plaintext), len(ct), nonce, tag)

	if err := entropy.Fill(nonce); err != nil {
		v.log(audit.ActionSlotSeal, false, v.slotMeta(slot, err))
		return fmt.Errorf("vault: nonce generation: %w", err)
	}

	err := v.withKey(func(key []byte) error {
		var n16 [aegis.NonceSize]byte
		copy(n16[:NonceSize], nonce)
		aad := [1]byte{byte(slot)}
		aegis.Seal(key, n16[:], aad[:], plaintext, ct, tag)
		memzero.Wipe(n16[:])
		return nil
	})
	if err != nil {
		v.log(audit.ActionSlotSeal, false, v.slotMeta(slot, err))
		return err
	}

	v.log(audit.ActionSlotSeal, true, v.slotMeta(slot, nil))
	return nil
}

// OpenSlot authenticates and decrypts ct into plaintext (same length).
// plaintext may alias ct for in-place opening. On authentication failure
// the output buffer is wiped and the error carries the AuthFail kind.
func (v *Vault) OpenSlot(slot int, ct, nonce, tag, plaintext []byte) error {
	checkSlotParams(slot, len(plaintext), len(ct), nonce, tag)

	err := v.withKey(func(key []byte) error {
		var n16 [aegis.NonceSize]byte
		copy(n16[:NonceSize], nonce)
		aad := [1]byte{byte(slot)}
		defer memzero.Wipe(n16[:])
		return aegis.Open(key, n16[:], aad[:], ct, tag, plaintext)
	})
	if err != nil {
		v.log(audit.ActionSlotOpen, false, v.slotMeta(slot, err))
		if errors.Is(err, aegis.ErrAuth) {
			return fmt.Errorf("vault: slot %d: %w", slot, err)
		}
		return err
	}

	v.log(audit.ActionSlotOpen, true, v.slotMeta(slot, nil))
	return nil
}

// Close wipes the master key and marks the vault unusable. Idempotent.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true

	// Opening the enclave one last time yields a plaintext copy;
	// destroying that buffer wipes it byte by byte. The enclave itself is
	// dropped, not overwritten: its ciphertext stays on the heap until
	// the garbage collector reclaims it.
	if b, err := v.keyEnclave.Open(); err == nil {
		b.Destroy()
	}
	v.keyEnclave = nil

	v.log(audit.ActionVaultClose, true, map[string]interface{}{
		"vault_id": v.id,
	})
	return v.audit.Close()
}

// withKey decrypts the master key into a locked buffer, runs f over the
// key bytes, and destroys the buffer before returning. The key is never
// borrowed out of this scope.
func (v *Vault) withKey(f func(key []byte) error) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	enclave := v.keyEnclave
	v.mu.Unlock()

	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("vault: key enclave open: %w", err)
	}
	defer buf.Destroy()

	return f(buf.Bytes())
}

func (v *Vault) slotMeta(slot int, err error) map[string]interface{} {
	m := map[string]interface{}{
		"vault_id": v.id,
		"slot":     slot,
	}
	if err != nil {
		m["error"] = err.Error()
	}
	return m
}

func (v *Vault) log(action string, success bool, meta map[string]interface{}) {
	_ = v.audit.Log(action, success, meta)
}

// checkSlotParams aborts on contract violations: these cannot occur when
// the derive contract is honored, so they are programmer errors, not
// recoverable conditions.
func checkSlotParams(slot, ptLen, ctLen int, nonce, tag []byte) {
	switch {
	case slot < 0 || slot >= MaxSlots:
		panic(fmt.Sprintf("vault: slot index %d out of range", slot))
	case ptLen != ctLen:
		panic("vault: plaintext and ciphertext lengths differ")
	case len(nonce) != NonceSize:
		panic("vault: bad nonce length")
	case len(tag) != TagSize:
		panic("vault: bad tag length")
	}
}
