package keystore

import (
	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/kdf"
	"github.com/raicore/walletcore/rawkey"
)

// passwordCache holds the password-derived key split across fanout XOR
// shares: the true value is the XOR of every share, and no single share
// reveals it. This mirrors wallet.cpp's fan_out-sharded password_store —
// kept not for defense against a hostile reader of this process's memory
// (Go offers no such guarantee) but because the structural split is part of
// the spec this module reproduces, including its exact rekey update path.
type passwordCache struct {
	values []rawkey.RawKey
}

func newPasswordCache(fanout int) *passwordCache {
	if fanout < 1 {
		fanout = 1
	}
	return &passwordCache{values: make([]rawkey.RawKey, fanout)}
}

// value reconstructs the effective password key by XORing every share.
func (p *passwordCache) value() rawkey.RawKey {
	var v rawkey.RawKey
	for _, share := range p.values {
		v = v.Xor(share)
	}
	return v
}

// valueSet replaces the cached password wholesale: share 0 becomes v XOR
// every other existing share, so value() immediately reconstructs v. Used
// by Create and AttemptPassword (loading a freshly derived key); Lock
// clears every share through zero instead.
func (p *passwordCache) valueSet(v rawkey.RawKey) {
	rest := v
	for i := 1; i < len(p.values); i++ {
		rest = rest.Xor(p.values[i])
	}
	p.values[0] = rest
}

// rekeyUpdate applies wallet.cpp's in-place rekey step: share 0 is XORed
// with the old password then the new one. Algebraically this still leaves
// value() == newPassword, because the two XORs cancel the contribution of
// oldPassword and introduce newPassword in its place — but it is a
// different code path than valueSet (no dependency on the other shares),
// reproduced here because the spec calls out this exact structure.
func (p *passwordCache) rekeyUpdate(oldPassword, newPassword rawkey.RawKey) {
	p.values[0] = p.values[0].Xor(oldPassword)
	p.values[0] = p.values[0].Xor(newPassword)
}

func (p *passwordCache) zero() {
	for i := range p.values {
		p.values[i].Zero()
	}
}

// derive runs the KDF against password under profile, yielding the
// password-derived key ready to hand to valueSet or to decrypt the
// wallet_key envelope directly.
func derive(profile config.Profile, password []byte, salt hash256.Hash256) rawkey.RawKey {
	return kdf.Derive(profile, password, salt)
}
