// Package cipher implements the keystore's symmetric transform: a
// length-preserving CTR-mode stream cipher over 32-byte payloads, keyed by a
// 256-bit key and a 128-bit IV drawn from the wallet's salt. No third-party
// AES-CTR wrapper appears anywhere in the retrieval pack (the closest
// analogue, memoio's lib/crypto/aes, wraps CBC mode instead); this stays on
// the standard library's crypto/aes + crypto/cipher, which is itself the
// building block every pack repo that touches AES reaches for.
package cipher

import (
	stdcipher "crypto/cipher"

	"crypto/aes"

	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/rawkey"
)

const IVSize = 16

// IVFromSalt returns the 16-byte IV every keystore encryption keys off: the
// first 16 bytes of the wallet's salt (bytes [0:16), i.e. words [0..2) of
// hash256.Words, the numerically most significant half).
func IVFromSalt(salt hash256.Hash256) [IVSize]byte {
	var iv [IVSize]byte
	copy(iv[:], salt[:IVSize])
	return iv
}

// Transform XORs in with the AES-CTR keystream derived from key and iv. CTR
// mode is its own inverse, so the same call encrypts and decrypts.
func Transform(key rawkey.RawKey, iv [IVSize]byte, in [32]byte) (out [32]byte, err error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return out, err
	}

	stream := stdcipher.NewCTR(block, iv[:])
	stream.XORKeyStream(out[:], in[:])
	return out, nil
}

// Encrypt produces the ciphertext for a RawKey plaintext.
func Encrypt(key rawkey.RawKey, iv [IVSize]byte, plain rawkey.RawKey) (rawkey.Ciphertext, error) {
	out, err := Transform(key, iv, [32]byte(plain))
	return rawkey.Ciphertext(out), err
}

// Decrypt recovers the RawKey plaintext from a ciphertext.
func Decrypt(key rawkey.RawKey, iv [IVSize]byte, ct rawkey.Ciphertext) (rawkey.RawKey, error) {
	out, err := Transform(key, iv, [32]byte(ct))
	return rawkey.RawKey(out), err
}
