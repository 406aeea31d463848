package keystore

import (
	"crypto/rand"

	"github.com/hashicorp/go-multierror"

	"github.com/raicore/walletcore/cipher"
	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/ed25519key"
	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
)

func randomKey() (rawkey.RawKey, error) {
	return ed25519key.GenerateSeed(rand.Reader)
}

// Create initializes a brand-new wallet table under name: a random salt, a
// random wallet master key enveloped under password, a check value
// enveloped under the master key, a random seed for the deterministic
// chain, and the supplied initial representative. The returned Keystore is
// unlocked, having just been handed the password that produced it.
func Create(txn store.Txn, st *store.Store, profile config.Profile, log tplog.Logger, name string, fanout int, password []byte, representative rawkey.PublicKey) (*Keystore, error) {
	k := newKeystore(st, profile, log, name, fanout)

	salt, err := randomKey()
	if err != nil {
		return nil, err
	}
	master, err := randomKey()
	if err != nil {
		return nil, err
	}
	defer master.Zero()
	seed, err := randomKey()
	if err != nil {
		return nil, err
	}
	defer seed.Zero()

	var saltHash hash256.Hash256
	copy(saltHash[:], salt.Bytes())
	iv := cipher.IVFromSalt(saltHash)

	derived := derive(profile, password, saltHash)
	defer derived.Zero()

	walletKeyCt, err := cipher.Encrypt(derived, iv, master)
	if err != nil {
		return nil, err
	}
	checkCt, err := cipher.Encrypt(master, iv, rawkey.RawKey{})
	if err != nil {
		return nil, err
	}
	seedCt, err := cipher.Encrypt(master, iv, seed)
	if err != nil {
		return nil, err
	}

	puts := []struct {
		key hash256.Hash256
		val [32]byte
	}{
		{specialVersion, [32]byte(hash256.FromUint64(CurrentVersion))},
		{specialSalt, [32]byte(salt)},
		{specialWalletKey, [32]byte(walletKeyCt)},
		{specialCheck, [32]byte(checkCt)},
		{specialRepresentative, [32]byte(representative)},
		{specialSeed, [32]byte(seedCt)},
		{specialDeterministicIndex, [32]byte(hash256.FromUint64(0))},
	}
	for _, p := range puts {
		if err := k.putEntry(txn, p.key, entry{value: p.val}); err != nil {
			return nil, err
		}
	}

	k.password.valueSet(derived)
	k.locked = false
	return k, nil
}

// Load attaches a Keystore to an already-populated table (one Create, or a
// prior process run, already wrote), without touching the password state:
// the wallet starts locked and AttemptPassword must be called before any
// sensitive operation succeeds.
func Load(txn store.Txn, st *store.Store, profile config.Profile, log tplog.Logger, name string, fanout int) (*Keystore, error) {
	k := newKeystore(st, profile, log, name, fanout)

	if _, err := k.getEntry(txn, specialVersion); err != nil {
		return nil, err
	}
	return k, nil
}

// AttemptPassword tries password against the stored check value. On a
// match it caches the derived key, unlocks the wallet, and runs any
// pending version upgrades before returning. A wrong password is not an
// error: it is reported via the bool return, matching the reference
// wallet_store::attempt_password's non-exceptional "didn't match" outcome.
func (k *Keystore) AttemptPassword(txn store.Txn, password []byte) (bool, error) {
	saltEntry, err := k.getEntry(txn, specialSalt)
	if err != nil {
		return false, err
	}
	var salt hash256.Hash256
	copy(salt[:], saltEntry.value[:])
	iv := cipher.IVFromSalt(salt)

	derived := derive(k.profile, password, salt)

	master, err := k.walletMasterWith(txn, derived)
	if err != nil {
		derived.Zero()
		return false, err
	}
	defer master.Zero()

	checkEntry, err := k.getEntry(txn, specialCheck)
	if err != nil {
		derived.Zero()
		return false, err
	}
	checkCt, err := rawkey.CiphertextFromBytes(checkEntry.value[:])
	if err != nil {
		derived.Zero()
		return false, ErrMalformedInput
	}
	plain, err := cipher.Decrypt(master, iv, checkCt)
	if err != nil {
		derived.Zero()
		return false, err
	}
	defer plain.Zero()

	if !plain.Equal(rawkey.RawKey{}) {
		derived.Zero()
		return false, nil
	}

	k.mu.Lock()
	k.password.valueSet(derived)
	k.locked = false
	k.mu.Unlock()
	derived.Zero()

	if err := k.runUpgrades(txn); err != nil {
		return true, err
	}
	return true, nil
}

// ValidPassword reports whether the currently cached password still
// matches the stored check value, without altering any state. Useful for
// re-validating after a long-lived unlock before a sensitive operation.
func (k *Keystore) ValidPassword(txn store.Txn) (bool, error) {
	if err := k.requireUnlocked(); err != nil {
		return false, nil
	}

	k.mu.Lock()
	derived := k.password.value()
	k.mu.Unlock()
	defer derived.Zero()

	master, err := k.walletMasterWith(txn, derived)
	if err != nil {
		return false, err
	}
	defer master.Zero()

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return false, err
	}
	checkEntry, err := k.getEntry(txn, specialCheck)
	if err != nil {
		return false, err
	}
	checkCt, err := rawkey.CiphertextFromBytes(checkEntry.value[:])
	if err != nil {
		return false, ErrMalformedInput
	}
	plain, err := cipher.Decrypt(master, iv, checkCt)
	if err != nil {
		return false, err
	}
	defer plain.Zero()

	return plain.Equal(rawkey.RawKey{}), nil
}

// Rekey re-envelopes the wallet master key under a new password, updating
// the password cache in place via passwordCache.rekeyUpdate rather than a
// full valueSet, reproducing the reference implementation's exact rekey
// structure (wallet.cpp's password XOR dance) instead of just re-deriving.
func (k *Keystore) Rekey(txn store.Txn, newPassword []byte) error {
	if err := k.requireUnlocked(); err != nil {
		return err
	}

	iv, err := k.ivFromSalt(txn)
	if err != nil {
		return err
	}

	k.mu.Lock()
	oldDerived := k.password.value()
	k.mu.Unlock()
	defer oldDerived.Zero()

	master, err := k.walletMasterWith(txn, oldDerived)
	if err != nil {
		return err
	}
	defer master.Zero()

	saltEntry, err := k.getEntry(txn, specialSalt)
	if err != nil {
		return err
	}
	var salt hash256.Hash256
	copy(salt[:], saltEntry.value[:])

	newDerived := derive(k.profile, newPassword, salt)
	defer newDerived.Zero()

	newCt, err := cipher.Encrypt(newDerived, iv, master)
	if err != nil {
		return err
	}
	if err := k.putEntry(txn, specialWalletKey, entry{value: [32]byte(newCt)}); err != nil {
		return err
	}

	k.mu.Lock()
	k.password.rekeyUpdate(oldDerived, newDerived)
	k.mu.Unlock()
	return nil
}

// Destroy removes every entry belonging to this wallet from the backing
// store. It operates at the store level rather than through a caller
// transaction because badger only exposes prefix deletion as a
// whole-database operation.
func (k *Keystore) Destroy() error {
	return k.st.DropTable(k.name)
}

// Move transfers the entries named by pubs from other into k,
// re-enveloping each recovered private key under k's own wallet master and
// erasing it from other. A deterministic entry in other is recovered from
// other's seed by Fetch and lands in k as an ad-hoc entry. A pub that
// cannot be fetched, inserted, or erased is skipped and reported via the
// returned multierror.
func (k *Keystore) Move(txn store.Txn, other *Keystore, pubs []rawkey.PublicKey) error {
	if err := k.requireUnlocked(); err != nil {
		return err
	}
	if err := other.requireUnlocked(); err != nil {
		return err
	}

	var errs *multierror.Error
	for _, pub := range pubs {
		prv, err := other.Fetch(txn, pub)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if _, err := k.InsertAdhoc(txn, prv); err != nil {
			prv.Zero()
			errs = multierror.Append(errs, err)
			continue
		}
		prv.Zero()
		if err := other.Erase(txn, pub); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Import copies every user-visible entry from other into k as an ad-hoc
// entry, per the decision that import means "copy every entry" rather
// than "copy only non-deterministic ones": a deterministic entry in other
// loses its chain membership but keeps its key material, identical to
// Move's treatment of a single entry except the source is left untouched.
// Returns the count of entries successfully imported and an aggregated
// error for any that failed.
func (k *Keystore) Import(txn store.Txn, other *Keystore) (int, error) {
	if err := k.requireUnlocked(); err != nil {
		return 0, err
	}
	if err := other.requireUnlocked(); err != nil {
		return 0, err
	}

	accounts, err := other.Accounts(txn)
	if err != nil {
		return 0, err
	}

	var errs *multierror.Error
	imported := 0
	for _, pub := range accounts {
		prv, err := other.Fetch(txn, pub)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		_, err = k.InsertAdhoc(txn, prv)
		prv.Zero()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		imported++
	}
	return imported, errs.ErrorOrNil()
}
