package keystore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	"github.com/raicore/walletcore/store"
)

// SerializeJSON dumps every entry in the table — specials and user
// entries alike — as a hex-key/hex-value object: {hex(key): hex(32-byte
// value slot)}. The cached work nonce is not part of the dump; a restored
// wallet regenerates it lazily like any other cold cache entry.
func (k *Keystore) SerializeJSON(txn store.Txn) (string, error) {
	dump := make(map[string]string)

	it := k.table(txn).Iterator()
	defer it.Close()
	for ; it.Valid(); it.Next() {
		e, err := decodeEntry(it.Value())
		if err != nil {
			return "", err
		}
		dump[it.Key().Hex()] = hex.EncodeToString(e.value[:])
	}

	out, err := json.Marshal(dump)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return string(out), nil
}

// requiredSpecials is every special slot a well-formed dump must contain.
// specialSeed and specialDeterministicIndex are deliberately not required
// here: a pre-v3 dump legitimately lacks them, and the v2-to-v3 upgrade
// chain adds them once the restored Keystore is unlocked. Requiring them
// at load time would wrongly reject a legitimate older export.
var requiredSpecials = []hash256.Hash256{
	specialVersion,
	specialSalt,
	specialWalletKey,
	specialCheck,
	specialRepresentative,
}

// LoadFromJSON recreates a wallet table under name from a SerializeJSON
// dump, overwriting any existing entries of the same name, and returns a
// locked Keystore attached to it.
func LoadFromJSON(txn store.Txn, st *store.Store, profile config.Profile, log tplog.Logger, name string, fanout int, jsonStr string) (*Keystore, error) {
	var dump map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &dump); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	k := newKeystore(st, profile, log, name, fanout)

	for keyHex, valueHex := range dump {
		key, err := hash256.FromHex(keyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: entry key %q: %v", ErrMalformedInput, keyHex, err)
		}
		valueBytes, err := hex.DecodeString(valueHex)
		if err != nil || len(valueBytes) != 32 {
			return nil, fmt.Errorf("%w: entry value for %q", ErrMalformedInput, keyHex)
		}
		var e entry
		copy(e.value[:], valueBytes)
		if err := k.putEntry(txn, key, e); err != nil {
			return nil, err
		}
	}

	for _, special := range requiredSpecials {
		if _, err := k.getEntry(txn, special); err != nil {
			return nil, fmt.Errorf("%w: dump missing special entry %s", ErrMalformedInput, special.Hex())
		}
	}

	return k, nil
}
