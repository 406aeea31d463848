package walletcoord

import (
	"errors"

	"github.com/raicore/walletcore/ed25519key"
	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/keystore"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
)

// ErrInsufficientBalance, ErrBelowMinimumReceive, and ErrBlockNotPending
// cover the precondition failures §4.4's action primitives must check
// before constructing a block.
var (
	ErrInsufficientBalance = errors.New("walletcoord: insufficient balance")
	ErrBelowMinimumReceive = errors.New("walletcoord: amount below minimum receive")
	ErrBlockNotPending     = errors.New("walletcoord: source block is not pending")
)

// MinimumReceive is the smallest amount this coordinator will construct a
// receive block for; the node may override per spec.md's Open Questions
// treatment of network-specific constants living outside this module.
var MinimumReceive uint64 = 1

// Block is the minimal signed-block shape the action primitives produce.
// Block *construction and validation* belong to the ledger collaborator
// this module only calls into (§6); this struct is just the carrier the
// coordinator hands back to the caller for republishing.
type Block struct {
	Type           string
	Account        rawkey.PublicKey
	Previous       hash256.Hash256
	Representative rawkey.PublicKey
	Balance        uint64
	Link           hash256.Hash256
	Signature      []byte
	Work           uint64
}

func (c *Coordinator) signedBlock(prv rawkey.RawKey, blockType string, account rawkey.PublicKey, previous hash256.Hash256, representative rawkey.PublicKey, balance uint64, link hash256.Hash256, work uint64) Block {
	b := Block{
		Type:           blockType,
		Account:        account,
		Previous:       previous,
		Representative: representative,
		Balance:        balance,
		Link:           link,
		Work:           work,
	}
	b.Signature = ed25519key.Sign(prv, signingPayload(b))
	return b
}

func signingPayload(b Block) []byte {
	buf := make([]byte, 0, 32*4+8+8)
	buf = append(buf, b.Account[:]...)
	buf = append(buf, b.Previous[:]...)
	buf = append(buf, b.Representative[:]...)
	buf = append(buf, b.Link[:]...)
	return buf
}

// SendAction validates and constructs a send block moving amount out of
// source_account to destination. It runs under the coordinator's
// serialization for source_account: callers reach it only from a thunk
// already queued via QueueWalletAction.
func (c *Coordinator) SendAction(txn store.Txn, walletID_ hash256.Hash256, source rawkey.PublicKey, destination rawkey.PublicKey, amount uint64) (Block, error) {
	k, err := c.wallet(walletID_)
	if err != nil {
		return Block{}, err
	}
	if k.IsLocked() {
		return Block{}, keystore.ErrInvalidPassword
	}
	if !k.Exists(txn, source) {
		return Block{}, ErrNotInWallet
	}

	balance := c.ledger.AccountBalance(source)
	if balance < amount {
		return Block{}, ErrInsufficientBalance
	}

	prv, err := k.Fetch(txn, source)
	if err != nil {
		return Block{}, err
	}
	defer prv.Zero()

	head, _ := c.ledger.Latest(source)
	root := c.ledger.LatestRoot(source)
	work, err := c.WorkFetch(txn, walletID_, source, root)
	if err != nil {
		return Block{}, err
	}

	rep, _ := k.Representative(txn)
	var link hash256.Hash256
	copy(link[:], destination[:])

	return c.signedBlock(prv, "send", source, head, rep, balance-amount, link, work), nil
}

// ReceiveAction validates and constructs a receive block pulling in
// sourceBlock, a pending send destined for destination.
func (c *Coordinator) ReceiveAction(txn store.Txn, walletID_ hash256.Hash256, destination rawkey.PublicKey, sourceBlock hash256.Hash256, amount uint64) (Block, error) {
	k, err := c.wallet(walletID_)
	if err != nil {
		return Block{}, err
	}
	if k.IsLocked() {
		return Block{}, keystore.ErrInvalidPassword
	}
	if !k.Exists(txn, destination) {
		return Block{}, ErrNotInWallet
	}
	if amount < MinimumReceive {
		return Block{}, ErrBelowMinimumReceive
	}
	if c.ledger != nil && !c.ledger.PendingExists(sourceBlock) {
		return Block{}, ErrBlockNotPending
	}

	prv, err := k.Fetch(txn, destination)
	if err != nil {
		return Block{}, err
	}
	defer prv.Zero()

	head, _ := c.ledger.Latest(destination)
	root := c.ledger.LatestRoot(destination)
	work, err := c.WorkFetch(txn, walletID_, destination, root)
	if err != nil {
		return Block{}, err
	}

	balance := c.ledger.AccountBalance(destination)
	rep, _ := k.Representative(txn)

	return c.signedBlock(prv, "receive", destination, head, rep, balance+amount, sourceBlock, work), nil
}

// ChangeAction validates and constructs a change-representative block for
// account.
func (c *Coordinator) ChangeAction(txn store.Txn, walletID_ hash256.Hash256, account rawkey.PublicKey, newRepresentative rawkey.PublicKey) (Block, error) {
	k, err := c.wallet(walletID_)
	if err != nil {
		return Block{}, err
	}
	if k.IsLocked() {
		return Block{}, keystore.ErrInvalidPassword
	}
	if !k.Exists(txn, account) {
		return Block{}, ErrNotInWallet
	}

	prv, err := k.Fetch(txn, account)
	if err != nil {
		return Block{}, err
	}
	defer prv.Zero()

	head, _ := c.ledger.Latest(account)
	root := c.ledger.LatestRoot(account)
	work, err := c.WorkFetch(txn, walletID_, account, root)
	if err != nil {
		return Block{}, err
	}

	balance := c.ledger.AccountBalance(account)
	return c.signedBlock(prv, "change", account, head, newRepresentative, balance, hash256.Zero, work), nil
}

// EnsureAllWork sweeps every account in walletID and calls WorkEnsure for
// each, a periodic maintenance pass supplementing spec.md's per-account
// work_ensure with the wallet-wide call the node's background scheduler
// would otherwise have to assemble itself.
func (c *Coordinator) EnsureAllWork(txn store.Txn, walletID_ hash256.Hash256) error {
	k, err := c.wallet(walletID_)
	if err != nil {
		return err
	}
	if k.IsLocked() {
		return keystore.ErrInvalidPassword
	}

	accounts, err := k.Accounts(txn)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		root := hashFromPublic(account) // uncreated account's root is its own public key
		if c.ledger != nil {
			root = c.ledger.LatestRoot(account)
		}
		c.WorkEnsure(walletID_, account, root)
	}
	return nil
}

func hashFromPublic(p rawkey.PublicKey) hash256.Hash256 {
	var h hash256.Hash256
	copy(h[:], p[:])
	return h
}

// RepresentativeSetAll sets representative for every account in walletID,
// a supplemented bulk convenience spec.md's representative_set only
// offers per-account.
func (c *Coordinator) RepresentativeSetAll(txn store.Txn, walletID_ hash256.Hash256, representative rawkey.PublicKey) error {
	k, err := c.wallet(walletID_)
	if err != nil {
		return err
	}
	return k.RepresentativeSet(txn, representative)
}
