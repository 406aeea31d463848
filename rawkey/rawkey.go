// Package rawkey holds the fixed-size, zeroable secret buffers the wallet
// core passes around: raw private-key material, derived public keys, and
// the ciphertext an entry's value slot stores on disk. None of these types
// grow, and RawKey must be wiped rather than left for the allocator.
package rawkey

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/raicore/walletcore/common"
)

const Size = 32

// RawKey is 32 bytes of secret material: a seed, a password-derived key, a
// wallet master key, or an Ed25519 private key. Callers must call Zero once
// a RawKey is no longer needed.
type RawKey [Size]byte

// PublicKey is a 32-byte Ed25519 public key.
type PublicKey [Size]byte

// Ciphertext is the on-disk encrypted form of a RawKey: 32 bytes, produced
// by the CTR-mode transform in the cipher package.
type Ciphertext [Size]byte

func FromBytes(b []byte) (RawKey, error) {
	var k RawKey
	if len(b) != Size {
		return k, fmt.Errorf("rawkey: invalid length %d, want %d", len(b), Size)
	}
	copy(k[:], b)
	return k, nil
}

// Bytes returns a freshly allocated copy of k's bytes, so a caller can
// hand it to code that retains the slice without that code ever aliasing
// k's own backing array (which Zero later overwrites in place).
func (k RawKey) Bytes() []byte {
	return common.BytesCopy(k[:])
}

// Zero overwrites k in place so the secret does not linger in memory past
// its useful lifetime.
func (k *RawKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Equal performs a constant-time comparison, appropriate for comparing
// secret material (e.g. password-check values) without leaking timing.
func (k RawKey) Equal(o RawKey) bool {
	return subtle.ConstantTimeCompare(k[:], o[:]) == 1
}

// Xor returns k ^ o byte-wise, the primitive the password cache's
// XOR-sharing scheme is built from.
func (k RawKey) Xor(o RawKey) RawKey {
	var out RawKey
	for i := range k {
		out[i] = k[i] ^ o[i]
	}
	return out
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var p PublicKey
	if len(b) != Size {
		return p, fmt.Errorf("rawkey: invalid public key length %d, want %d", len(b), Size)
	}
	copy(p[:], b)
	return p, nil
}

func (p PublicKey) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, p[:])
	return out
}

func (p PublicKey) Hex() string {
	return hex.EncodeToString(p[:])
}

func (p PublicKey) Equal(o PublicKey) bool {
	return p == o
}

func CiphertextFromBytes(b []byte) (Ciphertext, error) {
	var c Ciphertext
	if len(b) != Size {
		return c, fmt.Errorf("rawkey: invalid ciphertext length %d, want %d", len(b), Size)
	}
	copy(c[:], b)
	return c, nil
}

func (c Ciphertext) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, c[:])
	return out
}
