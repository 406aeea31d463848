// Package hash256 implements the opaque 32-byte identifier used throughout
// the wallet core as both a table key and a generic 256-bit value (a public
// key, a seed, a deterministic-index marker, a ciphertext).
package hash256

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/raicore/walletcore/common"
)

const Size = 32

// Hash256 is a 32-byte value with a well-defined big-endian numeric
// interpretation: word 0 holds the most significant 64 bits.
type Hash256 [Size]byte

var Zero = Hash256{}

// FromBytes copies b into a new Hash256. b must be exactly Size bytes.
func FromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != Size {
		return h, fmt.Errorf("hash256: invalid length %d, want %d", len(b), Size)
	}
	copy(h[:], b)
	return h, nil
}

// FromUint64 builds a Hash256 whose numeric value equals v, used for the
// small reserved-key constants (0..6).
func FromUint64(v uint64) Hash256 {
	var h Hash256
	binary.BigEndian.PutUint64(h[24:], v)
	return h
}

func FromHex(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("hash256: %w", err)
	}
	return FromBytes(b)
}

func (h Hash256) Bytes() []byte {
	return common.BytesCopy(h[:])
}

func (h Hash256) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash256) String() string {
	return h.Hex()
}

func (h Hash256) IsZero() bool {
	return h == Zero
}

func (h Hash256) Equal(o Hash256) bool {
	return h == o
}

// Compare returns -1, 0, or 1 comparing h and o as big-endian unsigned
// integers, matching the ordering the backing store keys on.
func (h Hash256) Compare(o Hash256) int {
	return bytes.Compare(h[:], o[:])
}

func (h Hash256) Less(o Hash256) bool {
	return h.Compare(o) < 0
}

// Xor returns h ^ o byte-wise.
func (h Hash256) Xor(o Hash256) Hash256 {
	var out Hash256
	for i := range h {
		out[i] = h[i] ^ o[i]
	}
	return out
}

// Words reinterprets h as four big-endian uint64 words, word 0 most
// significant, matching the "numeric magnitude" discrimination rules in the
// keystore's value-slot classification.
func (h Hash256) Words() [4]uint64 {
	var w [4]uint64
	for i := 0; i < 4; i++ {
		w[i] = binary.BigEndian.Uint64(h[i*8 : i*8+8])
	}
	return w
}

// WordsLE reinterprets h as four little-endian uint64 words taken in byte
// order, word 0 covering bytes [0:8). This is the layout the salt's IV
// material is drawn from (words [0..2) of the salt, i.e. bytes [0:16)).
func (h Hash256) WordsLE() [4]uint64 {
	var w [4]uint64
	for i := 0; i < 4; i++ {
		w[i] = binary.LittleEndian.Uint64(h[i*8 : i*8+8])
	}
	return w
}

// GreaterThanUint64Max reports whether h, read as a big-endian unsigned
// 256-bit integer, exceeds the maximum uint64 value — the ad-hoc-vs-
// deterministic discriminator in the keystore's value-slot classification.
func (h Hash256) GreaterThanUint64Max() bool {
	for i := 0; i < 24; i++ {
		if h[i] != 0 {
			return true
		}
	}
	return false
}

// Low64 returns the least significant 64 bits, interpreted big-endian.
func (h Hash256) Low64() uint64 {
	return binary.BigEndian.Uint64(h[24:])
}
