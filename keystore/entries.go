package keystore

import (
	"golang.org/x/crypto/blake2b"

	"github.com/raicore/walletcore/cipher"
	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
)

// keyKind discriminates a user-visible entry's value slot. Ad-hoc entries
// store the AES-CTR ciphertext of the private key, a value
// indistinguishable from random and so, with overwhelming probability,
// greater than the uint64 range. Deterministic entries store a marker
// whose high 32 bits are fixed to 1 and whose low 32 bits are the chain
// index; any other value below the uint64 range (no marker bit, or a
// stray high value) is neither shape and is treated as unknown/corrupt.
// This mirrors wallet_store::key_type exactly: no separate type tag is
// stored, the magnitude and bit pattern of the value itself is the tag.
type keyKind int

const (
	kindAdhoc keyKind = iota
	kindDeterministic
	kindUnknown
)

// deterministicMarkerBit is the fixed high-32-bits tag wallet.cpp's
// deterministic_insert sets on a chain-index marker (marker = 1<<32 |
// index), distinguishing a genuine deterministic entry from a v1/v2
// wallet's small-but-untagged values.
const deterministicMarkerBit = uint64(1) << 32

func classify(value hash256.Hash256) keyKind {
	if value.GreaterThanUint64Max() {
		return kindAdhoc
	}
	low := value.Low64()
	if low>>32 == 1 {
		return kindDeterministic
	}
	return kindUnknown
}

// deterministicIndexOf extracts the chain index from a value already
// classified as kindDeterministic.
func deterministicIndexOf(value hash256.Hash256) uint32 {
	return uint32(value.Low64() & 0xffffffff)
}

// Exists reports whether pub has an entry (special or user) in the table.
func (k *Keystore) Exists(txn store.Txn, pub rawkey.PublicKey) bool {
	_, err := k.getEntry(txn, publicKeyHash(pub))
	return err == nil
}

// Fetch recovers the private key for pub: for an ad-hoc entry it decrypts
// the stored ciphertext under the wallet master key; for a deterministic
// entry it recomputes the key from the seed and stored index. The
// recovered key's own derived public key is checked against pub before it
// is returned, guarding against a corrupted or foreign entry silently
// handing back the wrong key.
func (k *Keystore) Fetch(txn store.Txn, pub rawkey.PublicKey) (rawkey.RawKey, error) {
	if err := k.requireUnlocked(); err != nil {
		return rawkey.RawKey{}, err
	}

	e, err := k.getEntry(txn, publicKeyHash(pub))
	if err != nil {
		return rawkey.RawKey{}, err
	}

	var value hash256.Hash256
	copy(value[:], e.value[:])

	var prv rawkey.RawKey
	switch classify(value) {
	case kindDeterministic:
		prv, err = k.deterministicKey(txn, uint64(deterministicIndexOf(value)))
	case kindAdhoc:
		prv, err = k.decryptAdhoc(txn, e.value)
	default:
		return rawkey.RawKey{}, ErrInvalidKey
	}
	if err != nil {
		return rawkey.RawKey{}, err
	}

	if !ed25519PublicOf(prv).Equal(pub) {
		prv.Zero()
		return rawkey.RawKey{}, ErrInvalidKey
	}
	return prv, nil
}

func (k *Keystore) decryptAdhoc(txn store.Txn, slot [32]byte) (rawkey.RawKey, error) {
	k.mu.Lock()
	master := k.password.value()
	k.mu.Unlock()
	defer master.Zero()

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return rawkey.RawKey{}, err
	}

	masterKey, err := k.walletMasterWith(txn, master)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	defer masterKey.Zero()

	ct, err := rawkey.CiphertextFromBytes(slot[:])
	if err != nil {
		return rawkey.RawKey{}, ErrMalformedInput
	}
	return cipher.Decrypt(masterKey, iv, ct)
}

func (k *Keystore) deterministicKey(txn store.Txn, index uint64) (rawkey.RawKey, error) {
	seedEntry, err := k.getEntry(txn, specialSeed)
	if err != nil {
		return rawkey.RawKey{}, err
	}

	k.mu.Lock()
	master := k.password.value()
	k.mu.Unlock()
	defer master.Zero()

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	masterKey, err := k.walletMasterWith(txn, master)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	defer masterKey.Zero()

	ct, err := rawkey.CiphertextFromBytes(seedEntry.value[:])
	if err != nil {
		return rawkey.RawKey{}, ErrMalformedInput
	}
	seed, err := cipher.Decrypt(masterKey, iv, ct)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	defer seed.Zero()

	return deriveChild(seed, index), nil
}

// deriveChild computes the index'th deterministic key from seed, the same
// Blake2b(seed || big-endian index) construction the reference
// implementation's deterministic_key uses.
func deriveChild(seed rawkey.RawKey, index uint64) rawkey.RawKey {
	var idxBytes [4]byte
	idxBytes[0] = byte(index >> 24)
	idxBytes[1] = byte(index >> 16)
	idxBytes[2] = byte(index >> 8)
	idxBytes[3] = byte(index)

	digest := blake2bSum(seed.Bytes(), idxBytes[:])
	k, _ := rawkey.FromBytes(digest)
	return k
}

// InsertAdhoc stores prv's encrypted ciphertext under its own derived
// public key and returns that key. Ad-hoc entries are independent of the
// seed chain: they survive deterministicClear and are never touched by
// rekey except through the shared wallet-master envelope.
func (k *Keystore) InsertAdhoc(txn store.Txn, prv rawkey.RawKey) (rawkey.PublicKey, error) {
	if err := k.requireUnlocked(); err != nil {
		return rawkey.PublicKey{}, err
	}

	k.mu.Lock()
	master := k.password.value()
	k.mu.Unlock()
	defer master.Zero()

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return rawkey.PublicKey{}, err
	}
	masterKey, err := k.walletMasterWith(txn, master)
	if err != nil {
		return rawkey.PublicKey{}, err
	}
	defer masterKey.Zero()

	ct, err := cipher.Encrypt(masterKey, iv, prv)
	if err != nil {
		return rawkey.PublicKey{}, err
	}

	pub := ed25519PublicOf(prv)
	e := entry{value: [32]byte(ct)}
	if err := k.putEntry(txn, publicKeyHash(pub), e); err != nil {
		return rawkey.PublicKey{}, err
	}
	return pub, nil
}

// DeterministicInsert advances the deterministic index counter and stores
// the new index's public key as a lookup entry tagged with the
// deterministic marker bit, returning the public key. The private key
// itself is never stored: it is recomputed from the seed and index on
// every Fetch. If the index's derived public key already has an entry (an
// ad-hoc key imported or inserted ahead of the chain catching up to it),
// the index is advanced and retried, matching wallet.cpp's
// deterministic_insert collision loop.
func (k *Keystore) DeterministicInsert(txn store.Txn) (rawkey.PublicKey, error) {
	if err := k.requireUnlocked(); err != nil {
		return rawkey.PublicKey{}, err
	}

	idxEntry, err := k.getEntry(txn, specialDeterministicIndex)
	if err != nil {
		return rawkey.PublicKey{}, err
	}
	var idxValue hash256.Hash256
	copy(idxValue[:], idxEntry.value[:])
	index := idxValue.Low64()

	prv, err := k.deterministicKey(txn, index)
	if err != nil {
		return rawkey.PublicKey{}, err
	}
	pub := ed25519PublicOf(prv)
	for k.Exists(txn, pub) {
		prv.Zero()
		index++
		prv, err = k.deterministicKey(txn, index)
		if err != nil {
			return rawkey.PublicKey{}, err
		}
		pub = ed25519PublicOf(prv)
	}
	prv.Zero()

	marker := hash256.FromUint64(deterministicMarkerBit | index)
	if err := k.putEntry(txn, publicKeyHash(pub), entry{value: [32]byte(marker)}); err != nil {
		return rawkey.PublicKey{}, err
	}
	if err := k.putEntry(txn, specialDeterministicIndex, entry{value: [32]byte(hash256.FromUint64(index + 1))}); err != nil {
		return rawkey.PublicKey{}, err
	}
	return pub, nil
}

// SeedSet replaces the wallet's deterministic seed with seed, enveloping
// it under the wallet master the same way Create does, then clears every
// existing deterministic entry and resets the chain index to 0 —
// wallet_store::seed_set unconditionally calls deterministic_clear
// because every previously-issued deterministic key is derived from the
// old seed and no longer belongs to the chain.
func (k *Keystore) SeedSet(txn store.Txn, seed rawkey.RawKey) error {
	if err := k.requireUnlocked(); err != nil {
		return err
	}

	k.mu.Lock()
	derived := k.password.value()
	k.mu.Unlock()
	defer derived.Zero()

	master, err := k.walletMasterWith(txn, derived)
	if err != nil {
		return err
	}
	defer master.Zero()

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return err
	}

	seedCt, err := cipher.Encrypt(master, iv, seed)
	if err != nil {
		return err
	}
	if err := k.putEntry(txn, specialSeed, entry{value: [32]byte(seedCt)}); err != nil {
		return err
	}

	return k.deterministicClear(txn)
}

// deterministicClear erases every entry classified as deterministic and
// resets the chain index to 0. Called by SeedSet; the v2-to-v3 upgrade,
// which has no deterministic entries yet to clear, writes the same index
// reset itself.
func (k *Keystore) deterministicClear(txn store.Txn) error {
	accounts, err := k.Accounts(txn)
	if err != nil {
		return err
	}
	for _, pub := range accounts {
		e, err := k.getEntry(txn, publicKeyHash(pub))
		if err != nil {
			continue
		}
		var value hash256.Hash256
		copy(value[:], e.value[:])
		if classify(value) != kindDeterministic {
			continue
		}
		if err := k.delEntry(txn, publicKeyHash(pub)); err != nil {
			return err
		}
	}
	return k.putEntry(txn, specialDeterministicIndex, entry{value: [32]byte(hash256.FromUint64(0))})
}

// Erase removes pub's entry. Erasing a special key is refused: callers
// reach specials through their own dedicated accessors, never through the
// generic entry API.
func (k *Keystore) Erase(txn store.Txn, pub rawkey.PublicKey) error {
	if err := k.requireUnlocked(); err != nil {
		return err
	}
	key := publicKeyHash(pub)
	if !key.GreaterThanUint64Max() && key.Low64() < specialCount {
		return ErrInvalidKey
	}
	return k.delEntry(txn, key)
}

// Accounts returns every user-visible public key in ascending Hash256
// order, skipping the reserved special slots.
func (k *Keystore) Accounts(txn store.Txn) ([]rawkey.PublicKey, error) {
	var out []rawkey.PublicKey

	it := k.table(txn).Iterator()
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := it.Key()
		if !key.GreaterThanUint64Max() && key.Low64() < specialCount {
			continue
		}
		var pub rawkey.PublicKey
		copy(pub[:], key[:])
		out = append(out, pub)
	}
	return out, nil
}

// Representative returns the wallet's configured representative public key.
func (k *Keystore) Representative(txn store.Txn) (rawkey.PublicKey, error) {
	e, err := k.getEntry(txn, specialRepresentative)
	if err != nil {
		return rawkey.PublicKey{}, err
	}
	var pub rawkey.PublicKey
	copy(pub[:], e.value[:])
	return pub, nil
}

// RepresentativeSet updates the wallet's configured representative.
func (k *Keystore) RepresentativeSet(txn store.Txn, pub rawkey.PublicKey) error {
	return k.putEntry(txn, specialRepresentative, entry{value: [32]byte(pub)})
}

// WorkGet returns the cached proof-of-work nonce stored alongside pub's
// entry, or (0, ErrNotFound) if pub has no entry.
func (k *Keystore) WorkGet(txn store.Txn, pub rawkey.PublicKey) (uint64, error) {
	e, err := k.getEntry(txn, publicKeyHash(pub))
	if err != nil {
		return 0, err
	}
	return e.work, nil
}

// WorkPut caches work for pub's existing entry without disturbing its
// value slot.
func (k *Keystore) WorkPut(txn store.Txn, pub rawkey.PublicKey, work uint64) error {
	key := publicKeyHash(pub)
	e, err := k.getEntry(txn, key)
	if err != nil {
		return err
	}
	e.work = work
	return k.putEntry(txn, key, e)
}

// blake2bSum hashes the concatenation of parts with Blake2b-256. Each
// deterministic key derivation calls this fresh: per Open Question 1, the
// reference implementation's hasher state is not reused across calls, and
// that independence is intentional rather than an oversight, since the
// hasher carries no cross-call state that derivation depends on.
func blake2bSum(parts ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("keystore: blake2b.New256: " + err.Error())
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
