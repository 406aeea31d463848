package keystore

import (
	"github.com/hashicorp/go-multierror"

	"github.com/raicore/walletcore/cipher"
	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
)

// runUpgrades advances the wallet's on-disk format to CurrentVersion, one
// step at a time, each under its own write transaction against k.st rather
// than the transaction the caller passed into AttemptPassword — an upgrade
// must commit even if the caller only asked for a read-only unlock. This
// is called once, right after a correct password is confirmed, never
// before: the repair and seed-generation steps both need the wallet
// master key, which is only available once unlocked.
//
// The starting version is read once, from callerTxn, and then tracked
// locally rather than re-read from callerTxn on every iteration: callerTxn
// may be a read-only snapshot taken before this call, in which case it
// would never observe the commits runUpgrades itself makes through
// k.st.Update, and re-reading it here would loop forever.
func (k *Keystore) runUpgrades(callerTxn store.Txn) error {
	versionEntry, err := k.getEntry(callerTxn, specialVersion)
	if err != nil {
		return err
	}
	var v hash256.Hash256
	copy(v[:], versionEntry.value[:])
	current := v.Low64()

	for current < CurrentVersion {
		var upgrade func(store.Txn) error
		switch current {
		case version1:
			upgrade = k.upgradeV1toV2
		case version2:
			upgrade = k.upgradeV2toV3
		default:
			k.log.Warnf("keystore %s: unknown on-disk version %d, leaving as-is", k.name, current)
			return nil
		}

		if err := k.st.Update(upgrade); err != nil {
			return err
		}
		current++
	}
	return nil
}

// upgradeV1toV2 is a repair scan grounded on wallet_store::upgrade_v1_v2:
// a v1 wallet may hold ad-hoc entries enveloped under either of two
// legacy wallet-key candidates instead of the wallet master the current
// password now unlocks — an all-zero key, or the KDF derivation of the
// empty-string password (both predate the wallet master ever being
// derived from the user's real password in this code path). For each
// entry that no longer Fetches cleanly under the current master, both
// candidates are tried in turn; the first whose decrypted key's derived
// public key matches the entry gets re-enveloped under the current
// correct master via InsertAdhoc. An entry that matches neither candidate
// is logged and left in place — wallet.cpp never deletes an entry here,
// only rewrites the ones it manages to recover.
func (k *Keystore) upgradeV1toV2(txn store.Txn) error {
	accounts, err := k.Accounts(txn)
	if err != nil {
		return err
	}

	saltEntry, err := k.getEntry(txn, specialSalt)
	if err != nil {
		return err
	}
	var salt hash256.Hash256
	copy(salt[:], saltEntry.value[:])
	iv := cipher.IVFromSalt(salt)

	var candidates []rawkey.RawKey
	if zeroMaster, err := k.walletMasterWith(txn, rawkey.RawKey{}); err == nil {
		defer zeroMaster.Zero()
		candidates = append(candidates, zeroMaster)
	}
	emptyDerived := derive(k.profile, []byte{}, salt)
	defer emptyDerived.Zero()
	if emptyMaster, err := k.walletMasterWith(txn, emptyDerived); err == nil {
		defer emptyMaster.Zero()
		candidates = append(candidates, emptyMaster)
	}

	var errs *multierror.Error
	for _, pub := range accounts {
		if _, err := k.Fetch(txn, pub); err == nil {
			continue
		}

		e, err := k.getEntry(txn, publicKeyHash(pub))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		var value hash256.Hash256
		copy(value[:], e.value[:])
		if classify(value) != kindAdhoc {
			continue
		}
		ct, err := rawkey.CiphertextFromBytes(e.value[:])
		if err != nil {
			continue
		}

		recovered := false
		for _, candidate := range candidates {
			prv, err := cipher.Decrypt(candidate, iv, ct)
			if err != nil {
				continue
			}
			if !ed25519PublicOf(prv).Equal(pub) {
				prv.Zero()
				continue
			}
			if _, err := k.InsertAdhoc(txn, prv); err != nil {
				errs = multierror.Append(errs, err)
			}
			prv.Zero()
			recovered = true
			break
		}
		if !recovered {
			k.log.Warnf("keystore %s: v1 entry %s unrecoverable under either legacy wallet-key candidate", k.name, pub.Hex())
		}
	}

	if err := k.putEntry(txn, specialVersion, entry{value: [32]byte(hash256.FromUint64(version2))}); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// upgradeV2toV3 adds the deterministic chain to wallets created before it
// existed: a fresh random seed, enveloped under the wallet master key the
// same way Create does, and a zeroed chain index. Existing ad-hoc entries
// are untouched.
func (k *Keystore) upgradeV2toV3(txn store.Txn) error {
	if _, err := k.getEntry(txn, specialSeed); err == nil {
		return k.putEntry(txn, specialVersion, entry{value: [32]byte(hash256.FromUint64(version3))})
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

	seed, err := randomKey()
	if err != nil {
		return err
	}
	defer seed.Zero()

	seedCt, err := cipher.Encrypt(master, iv, seed)
	if err != nil {
		return err
	}

	if err := k.putEntry(txn, specialSeed, entry{value: [32]byte(seedCt)}); err != nil {
		return err
	}
	if err := k.putEntry(txn, specialDeterministicIndex, entry{value: [32]byte(hash256.FromUint64(0))}); err != nil {
		return err
	}
	return k.putEntry(txn, specialVersion, entry{value: [32]byte(hash256.FromUint64(version3))})
}
