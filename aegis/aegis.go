// Package aegis implements the AEGIS-128L authenticated cipher: 16-byte
// key, 16-byte nonce, 16-byte tag, 1024-bit state absorbing 256-bit
// message blocks, per the IRTF CFRG specification.
//
// Seal and Open work over caller-provided output buffers so the package
// never allocates for message data; in-place operation (ciphertext buffer
// aliasing the message buffer) is supported. Every stack scratch block
// that held keying material or plaintext is wiped before return, and Open
// wipes its output buffer before reporting an authentication failure.
package aegis

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"github.com/memparanoid/redoubt/memzero"
)

const (
	// KeySize is the AEGIS-128L key length in bytes.
	KeySize = 16
	// NonceSize is the AEGIS-128L nonce length in bytes.
	NonceSize = 16
	// TagSize is the authentication tag length in bytes.
	TagSize = 16

	blockSize = 32 // message block: two AES blocks
)

// ErrAuth is returned by Open when the tag does not verify. No plaintext
// is produced alongside it.
var ErrAuth = errors.New("aegis: message authentication failed")

// Initialization constants C0 and C1 (Fibonacci bytes mod 256).
var (
	c0 = [16]byte{0x00, 0x01, 0x01, 0x02, 0x03, 0x05, 0x08, 0x0d, 0x15, 0x22, 0x37, 0x59, 0x90, 0xe9, 0x79, 0x62}
	c1 = [16]byte{0xdb, 0x3d, 0x18, 0x55, 0x6d, 0xc2, 0x2f, 0xf1, 0x20, 0x11, 0x31, 0x42, 0x73, 0xb5, 0x28, 0xdd}
)

// blk is one AES block as four big-endian words, the layout the round
// tables operate on.
type blk [4]uint32

func load(b []byte) blk {
	return blk{
		binary.BigEndian.Uint32(b[0:4]),
		binary.BigEndian.Uint32(b[4:8]),
		binary.BigEndian.Uint32(b[8:12]),
		binary.BigEndian.Uint32(b[12:16]),
	}
}

func store(dst []byte, b blk) {
	binary.BigEndian.PutUint32(dst[0:4], b[0])
	binary.BigEndian.PutUint32(dst[4:8], b[1])
	binary.BigEndian.PutUint32(dst[8:12], b[2])
	binary.BigEndian.PutUint32(dst[12:16], b[3])
}

func xor(a, b blk) blk {
	return blk{a[0] ^ b[0], a[1] ^ b[1], a[2] ^ b[2], a[3] ^ b[3]}
}

func and(a, b blk) blk {
	return blk{a[0] & b[0], a[1] & b[1], a[2] & b[2], a[3] & b[3]}
}

// aesRound is one AES encryption round (SubBytes, ShiftRows, MixColumns)
// of in, followed by AddRoundKey with rk.
func aesRound(in, rk blk) blk {
	return blk{
		te0[uint8(in[0]>>24)] ^ te1[uint8(in[1]>>16)] ^ te2[uint8(in[2]>>8)] ^ te3[uint8(in[3])] ^ rk[0],
		te0[uint8(in[1]>>24)] ^ te1[uint8(in[2]>>16)] ^ te2[uint8(in[3]>>8)] ^ te3[uint8(in[0])] ^ rk[1],
		te0[uint8(in[2]>>24)] ^ te1[uint8(in[3]>>16)] ^ te2[uint8(in[0]>>8)] ^ te3[uint8(in[1])] ^ rk[2],
		te0[uint8(in[3]>>24)] ^ te1[uint8(in[0]>>16)] ^ te2[uint8(in[1]>>8)] ^ te3[uint8(in[2])] ^ rk[3],
	}
}

// state is the eight-block AEGIS-128L state.
type state [8]blk

func (s *state) update(m0, m1 blk) {
	var n state
	n[0] = aesRound(s[7], xor(s[0], m0))
	n[1] = aesRound(s[0], s[1])
	n[2] = aesRound(s[1], s[2])
	n[3] = aesRound(s[2], s[3])
	n[4] = aesRound(s[3], xor(s[4], m1))
	n[5] = aesRound(s[4], s[5])
	n[6] = aesRound(s[5], s[6])
	n[7] = aesRound(s[6], s[7])
	*s = n
	memzero.WipeValue(&n)
}

func (s *state) init(key, nonce []byte) {
	k := load(key)
	n := load(nonce)
	kc0 := load(c0[:])
	kc1 := load(c1[:])

	s[0] = xor(k, n)
	s[1] = kc1
	s[2] = kc0
	s[3] = kc1
	s[4] = xor(k, n)
	s[5] = xor(k, kc0)
	s[6] = xor(k, kc1)
	s[7] = xor(k, kc0)

	for i := 0; i < 10; i++ {
		s.update(n, k)
	}

	memzero.WipeValue(&k)
	memzero.WipeValue(&n)
}

// keystream pair for the current state.
func (s *state) z() (blk, blk) {
	z0 := xor(xor(s[6], s[1]), and(s[2], s[3]))
	z1 := xor(xor(s[2], s[5]), and(s[6], s[7]))
	return z0, z1
}

// absorb consumes one 32-byte associated-data block.
func (s *state) absorb(ai []byte) {
	s.update(load(ai[0:16]), load(ai[16:32]))
}

// encBlock encrypts one full 32-byte block from src into dst (may alias).
func (s *state) encBlock(dst, src []byte) {
	z0, z1 := s.z()
	t0 := load(src[0:16])
	t1 := load(src[16:32])
	store(dst[0:16], xor(t0, z0))
	store(dst[16:32], xor(t1, z1))
	s.update(t0, t1)
	memzero.WipeValue(&t0)
	memzero.WipeValue(&t1)
}

// decBlock decrypts one full 32-byte block from src into dst (may alias).
func (s *state) decBlock(dst, src []byte) {
	z0, z1 := s.z()
	o0 := xor(load(src[0:16]), z0)
	o1 := xor(load(src[16:32]), z1)
	store(dst[0:16], o0)
	store(dst[16:32], o1)
	s.update(o0, o1)
	memzero.WipeValue(&o0)
	memzero.WipeValue(&o1)
}

func (s *state) finalize(adBits, msgBits uint64, tag []byte) {
	var t [16]byte
	binary.LittleEndian.PutUint64(t[0:8], adBits)
	binary.LittleEndian.PutUint64(t[8:16], msgBits)
	u := xor(s[2], load(t[:]))
	for i := 0; i < 7; i++ {
		s.update(u, u)
	}
	acc := s[0]
	for i := 1; i <= 6; i++ {
		acc = xor(acc, s[i])
	}
	store(tag, acc)
	memzero.WipeValue(&u)
	memzero.WipeValue(&acc)
	memzero.Wipe(t[:])
}

func checkParams(key, nonce, tag []byte, msgLen, ctLen int) {
	switch {
	case len(key) != KeySize:
		panic("aegis: bad key length")
	case len(nonce) != NonceSize:
		panic("aegis: bad nonce length")
	case len(tag) != TagSize:
		panic("aegis: bad tag length")
	case msgLen != ctLen:
		panic("aegis: plaintext and ciphertext buffers differ in length")
	}
}

// Seal encrypts msg under key/nonce, authenticating aad, writing the
// ciphertext (same length as msg) into ct and the 16-byte tag into tag.
// ct may alias msg for in-place encryption. Zero-length msg and aad are
// permitted.
func Seal(key, nonce, aad, msg, ct, tag []byte) {
	checkParams(key, nonce, tag, len(msg), len(ct))

	adBits := uint64(len(aad)) * 8
	msgBits := uint64(len(msg)) * 8

	var s state
	s.init(key, nonce)
	defer memzero.WipeValue(&s)

	var scratch [blockSize]byte
	defer memzero.Wipe(scratch[:])

	for len(aad) >= blockSize {
		s.absorb(aad[:blockSize])
		aad = aad[blockSize:]
	}
	if len(aad) > 0 {
		copy(scratch[:], aad)
		s.absorb(scratch[:])
		memzero.Wipe(scratch[:])
	}

	for len(msg) >= blockSize {
		s.encBlock(ct[:blockSize], msg[:blockSize])
		msg = msg[blockSize:]
		ct = ct[blockSize:]
	}
	if len(msg) > 0 {
		// Partial block: zero-pad the plaintext, encrypt, emit only the
		// real bytes. The padded scratch copies are wiped before return.
		copy(scratch[:], msg)
		var out [blockSize]byte
		s.encBlock(out[:], scratch[:])
		copy(ct, out[:len(msg)])
		memzero.Wipe(out[:])
		memzero.Wipe(scratch[:])
	}

	s.finalize(adBits, msgBits, tag)
}

// Open decrypts ct under key/nonce, authenticating aad against tag, and
// writes the plaintext (same length as ct) into msg. msg may alias ct.
// On authentication failure msg is wiped and ErrAuth is returned; no
// plaintext is exposed. The tag comparison is constant time.
func Open(key, nonce, aad, ct, tag, msg []byte) error {
	checkParams(key, nonce, tag, len(msg), len(ct))

	adBits := uint64(len(aad)) * 8
	msgBits := uint64(len(ct)) * 8

	var s state
	s.init(key, nonce)
	defer memzero.WipeValue(&s)

	var scratch [blockSize]byte
	defer memzero.Wipe(scratch[:])

	for len(aad) >= blockSize {
		s.absorb(aad[:blockSize])
		aad = aad[blockSize:]
	}
	if len(aad) > 0 {
		copy(scratch[:], aad)
		s.absorb(scratch[:])
		memzero.Wipe(scratch[:])
	}

	out := msg
	rest := ct
	for len(rest) >= blockSize {
		s.decBlock(out[:blockSize], rest[:blockSize])
		rest = rest[blockSize:]
		out = out[blockSize:]
	}
	if len(rest) > 0 {
		// Partial block: decrypt the zero-padded ciphertext, keep the
		// real bytes, then absorb the plaintext with its padding bytes
		// forced back to zero, per the specification.
		n := len(rest)
		z0, z1 := s.z()
		copy(scratch[:], rest)
		var zb [blockSize]byte
		store(zb[0:16], z0)
		store(zb[16:32], z1)
		for i := range scratch {
			scratch[i] ^= zb[i]
		}
		memzero.Wipe(zb[:])
		copy(out, scratch[:n])
		memzero.Wipe(scratch[n:])
		s.update(load(scratch[0:16]), load(scratch[16:32]))
		memzero.Wipe(scratch[:])
	}

	var expect [TagSize]byte
	s.finalize(adBits, msgBits, expect[:])
	ok := subtle.ConstantTimeCompare(expect[:], tag) == 1
	memzero.Wipe(expect[:])
	if !ok {
		memzero.Wipe(msg)
		return ErrAuth
	}
	return nil
}
