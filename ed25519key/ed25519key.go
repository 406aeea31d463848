// Package ed25519key wraps Ed25519 key derivation, signing, and
// verification for the wallet core. The teacher's own ed25519 binding
// (crypt/ed25519/ed25519.go) goes through cgo to a libsodium-style native
// library; this package uses the standard library's pure-Go crypto/ed25519
// instead, the primitive the teacher's own build-tag-gated fallback
// (ed25519_noncgo.go) reaches for when cgo is unavailable, and follows that
// path unconditionally.
package ed25519key

import (
	"crypto/ed25519"
	"errors"
	"io"

	"github.com/raicore/walletcore/rawkey"
)

const SignatureSize = ed25519.SignatureSize

// PublicKeyFromSeed derives the Ed25519 public key for the 32-byte seed
// seed. Every RawKey in the keystore is such a seed: the deterministic
// entries are Blake2b digests, the ad-hoc entries are externally supplied
// private key material, and both are fed to Ed25519 the same way.
func PublicKeyFromSeed(seed rawkey.RawKey) rawkey.PublicKey {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub rawkey.PublicKey
	copy(pub[:], priv[32:])
	return pub
}

// Sign signs msg with the Ed25519 key derived from seed.
func Sign(seed rawkey.RawKey, msg []byte) []byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	return ed25519.Sign(priv, msg)
}

// Verify checks sig against msg and pub.
func Verify(pub rawkey.PublicKey, msg, sig []byte) bool {
	if len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pub[:], msg, sig)
}

// GenerateSeed draws a fresh random 32-byte seed from the supplied
// cryptographically secure reader, for ad-hoc key import and wallet-master
// generation.
func GenerateSeed(random io.Reader) (rawkey.RawKey, error) {
	var buf [32]byte
	n, err := random.Read(buf[:])
	if err != nil {
		return rawkey.RawKey{}, err
	}
	if n != len(buf) {
		return rawkey.RawKey{}, errors.New("ed25519key: short read from random source")
	}
	return rawkey.RawKey(buf), nil
}
