// Package keystore implements the encrypted, versioned, transactional
// per-wallet key database: deterministic and ad-hoc Ed25519 key storage,
// password lifecycle, and format upgrades. It is grounded on the semantics
// of the original Nano-style rai::wallet_store (node/wallet.cpp) — the
// special-key layout, key-type discrimination, and version-upgrade chain
// all mirror that source exactly — reshaped into the teacher's idiomatic Go
// conventions (sentinel errors, a log.Logger per instance, table/txn
// handles from the store package in place of an environment+MDB_txn pair).
package keystore

import (
	"fmt"
	"sync"

	"github.com/raicore/walletcore/cipher"
	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/ed25519key"
	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
)

// Special reserved keys, Hash256 values 0..6. User-visible entries use
// public-key Hash256 values >= specialCount.
var (
	specialVersion             = hash256.FromUint64(0)
	specialSalt                = hash256.FromUint64(1)
	specialWalletKey           = hash256.FromUint64(2)
	specialCheck               = hash256.FromUint64(3)
	specialRepresentative      = hash256.FromUint64(4)
	specialSeed                = hash256.FromUint64(5)
	specialDeterministicIndex  = hash256.FromUint64(6)
)

const specialCount = 7

// Version history: v1 predates the wallet-master repair and the
// deterministic chain; v2 added the repaired encoding; v3 added the
// deterministic seed chain. CurrentVersion is what Create writes and what
// the upgrade chain converges to.
const (
	version1 = 1
	version2 = 2
	version3 = 3

	CurrentVersion = version3
)

const entrySize = 40 // 32-byte value slot + 8-byte cached work nonce

// Keystore is one wallet's encrypted key table: a name (used as the
// backing store's table name), a handle to the shared store, and the
// in-memory password state that gates every sensitive operation.
type Keystore struct {
	name    string
	st      *store.Store
	log     tplog.Logger
	profile config.Profile

	mu       sync.Mutex
	locked   bool
	password *passwordCache
}

func newKeystore(st *store.Store, profile config.Profile, log tplog.Logger, name string, fanout int) *Keystore {
	return &Keystore{
		name:     name,
		st:       st,
		log:      tplog.CreateModuleLogger(tplogcmm.InfoLevel, "keystore", log),
		profile:  profile,
		locked:   true,
		password: newPasswordCache(fanout),
	}
}

// Name returns the wallet's table name.
func (k *Keystore) Name() string {
	return k.name
}

// IsLocked reports the current password state.
func (k *Keystore) IsLocked() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.locked
}

// Lock clears the cached password, returning the keystore to the LOCKED
// state. Sensitive operations fail until AttemptPassword succeeds again.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.locked = true
	k.password.zero()
}

func (k *Keystore) table(txn store.Txn) store.Table {
	return txn.Table(k.name)
}

func (k *Keystore) requireUnlocked() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locked {
		return ErrInvalidPassword
	}
	return nil
}

// entry is the decoded form of a 40-byte WalletEntry record.
type entry struct {
	value [32]byte
	work  uint64
}

func decodeEntry(b []byte) (entry, error) {
	if len(b) != entrySize {
		return entry{}, fmt.Errorf("%w: entry length %d, want %d", ErrMalformedInput, len(b), entrySize)
	}
	var e entry
	copy(e.value[:], b[:32])
	e.work = leUint64(b[32:])
	return e, nil
}

func (e entry) encode() []byte {
	buf := make([]byte, entrySize)
	copy(buf[:32], e.value[:])
	putLeUint64(buf[32:], e.work)
	return buf
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func (k *Keystore) getEntry(txn store.Txn, key hash256.Hash256) (entry, error) {
	raw, err := k.table(txn).Get(key)
	if err == store.ErrNotFound {
		return entry{}, ErrNotFound
	}
	if err != nil {
		return entry{}, fmt.Errorf("%w: %v", ErrBackingStoreFailure, err)
	}
	return decodeEntry(raw)
}

func (k *Keystore) putEntry(txn store.Txn, key hash256.Hash256, e entry) error {
	if err := k.table(txn).Put(key, e.encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrBackingStoreFailure, err)
	}
	return nil
}

func (k *Keystore) delEntry(txn store.Txn, key hash256.Hash256) error {
	if err := k.table(txn).Delete(key); err != nil {
		return fmt.Errorf("%w: %v", ErrBackingStoreFailure, err)
	}
	return nil
}

func (k *Keystore) ivFromSalt(txn store.Txn) ([16]byte, error) {
	saltEntry, err := k.getEntry(txn, specialSalt)
	if err != nil {
		return [16]byte{}, err
	}
	var salt hash256.Hash256
	copy(salt[:], saltEntry.value[:])
	return cipher.IVFromSalt(salt), nil
}

// walletMasterWith decrypts the wallet_key envelope with the supplied derived
// password key, returning the wallet master key.
func (k *Keystore) walletMasterWith(txn store.Txn, derivedPassword rawkey.RawKey) (rawkey.RawKey, error) {
	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	wkEntry, err := k.getEntry(txn, specialWalletKey)
	if err != nil {
		return rawkey.RawKey{}, err
	}
	ct, err := rawkey.CiphertextFromBytes(wkEntry.value[:])
	if err != nil {
		return rawkey.RawKey{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	master, err := cipher.Decrypt(derivedPassword, iv, ct)
	if err != nil {
		return rawkey.RawKey{}, fmt.Errorf("%w: %v", ErrBackingStoreFailure, err)
	}
	return master, nil
}

// publicKeyHash is the Hash256 a PublicKey is stored under.
func publicKeyHash(pub rawkey.PublicKey) hash256.Hash256 {
	var h hash256.Hash256
	copy(h[:], pub[:])
	return h
}

func ed25519PublicOf(prv rawkey.RawKey) rawkey.PublicKey {
	return ed25519key.PublicKeyFromSeed(prv)
}
