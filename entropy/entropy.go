// Package entropy sources uniform random bytes from the OS cryptographic
// facility and derives keys from them with HKDF domain separation. There
// is no fallback source: if the host entropy facility fails, the error is
// surfaced and the operation is abandoned.
package entropy

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/memparanoid/redoubt/memzero"
)

// ErrEntropy is the kind for any failure of the OS entropy facility.
var ErrEntropy = errors.New("entropy: facility unavailable")

// Fill overwrites dst with uniform random bytes suitable for keys and
// nonces.
func Fill(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if _, err := rand.Read(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return nil
}

// GenerateKey fills dst with a fresh key derived as
// HKDF-SHA256(ikm = OS entropy, salt = ephemeral OS entropy, info).
//
// The extra derivation stage is defense in depth over a raw entropy read:
// reconstructing the key requires both the input keying material and the
// ephemeral salt, and both are wiped before this function returns. info
// is a domain-separation label such as "redoubt.master_key.v1".
func GenerateKey(info []byte, dst []byte) error {
	if len(dst) == 0 {
		return fmt.Errorf("%w: empty key requested", ErrEntropy)
	}

	ikm := make([]byte, len(dst))
	salt := make([]byte, saltLen(len(dst)))
	defer memzero.Wipe(ikm)
	defer memzero.Wipe(salt)

	if err := Fill(ikm); err != nil {
		return err
	}
	if err := Fill(salt); err != nil {
		return err
	}

	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, dst); err != nil {
		memzero.Wipe(dst)
		return fmt.Errorf("%w: hkdf expand: %v", ErrEntropy, err)
	}
	return nil
}

// saltLen rounds the key length up to the next multiple of 64 bytes, the
// SHA-256 block size, so the salt never truncates inside the extract
// stage.
func saltLen(keyLen int) int {
	const block = 64
	return (keyLen + block - 1) / block * block
}
