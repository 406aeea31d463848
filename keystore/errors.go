package keystore

import "errors"

// Error taxonomy is semantic, not typed, matching the teacher's
// wallet.go (walletNotEnableErr, addrLockedErr) and
// ledger/backend/common/error.go sentinel style. Callers compare with
// errors.Is; wrapped causes (%w) retain one of these at the root.
var (
	// ErrInvalidPassword covers a sensitive operation (Rekey included)
	// attempted while locked. AttemptPassword reports a wrong password
	// through its bool result, not through this error.
	ErrInvalidPassword = errors.New("keystore: invalid password")

	// ErrInvalidKey covers a fetch whose recovered private key's derived
	// public key mismatches, or an entry with an unrecognized value-slot
	// marker.
	ErrInvalidKey = errors.New("keystore: invalid key")

	// ErrNotFound covers a lookup for a public key with no entry.
	ErrNotFound = errors.New("keystore: not found")

	// ErrBackingStoreFailure covers a transaction or I/O error from the
	// backing key-value store.
	ErrBackingStoreFailure = errors.New("keystore: backing store failure")

	// ErrMalformedInput covers JSON parse, hex parse, or a missing
	// special entry on load.
	ErrMalformedInput = errors.New("keystore: malformed input")
)
