// Package walletcoord implements the wallet coordinator: an in-memory
// aggregation of keystores by wallet id, plus the per-account action
// scheduler that serializes every mutating operation and integrates work
// generation into the pipeline. It is grounded on the teacher's
// execution/scheduler.go for the lock-protected-state-plus-background-task
// shape (spec.md §4.4's action_mutex guarding pending_actions and
// current_actions while thunks run unlocked mirrors the scheduler's
// executeMutex discipline) and on wallet/cache/cache_lru.go for the
// LRU-backed lookup cache idiom.
package walletcoord

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	mapset "github.com/deckarep/golang-set"
	lru "github.com/hashicorp/golang-lru"

	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/keystore"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
	"github.com/raicore/walletcore/rawkey"
	"github.com/raicore/walletcore/store"
	"github.com/raicore/walletcore/workpool"
)

// Reserved priority sentinels, per spec.md §4.4.
const (
	GeneratePriority uint64 = ^uint64(0)
	HighPriority     uint64 = ^uint64(0) - 1
)

var (
	// ErrUnknownWallet is returned when an operation names a wallet id with
	// no registered Keystore.
	ErrUnknownWallet = errors.New("walletcoord: unknown wallet")

	// ErrNotInWallet is returned when an action's account is not present
	// in the wallet it was queued against.
	ErrNotInWallet = errors.New("walletcore: account not in wallet")
)

// Ledger is the external ledger collaborator this module consumes but
// does not implement; §6 of the specification this module follows.
type Ledger interface {
	Latest(account rawkey.PublicKey) (hash256.Hash256, bool)
	LatestRoot(account rawkey.PublicKey) hash256.Hash256
	AccountBalance(account rawkey.PublicKey) uint64
	Weight(account rawkey.PublicKey) uint64
	PendingExists(key hash256.Hash256) bool
	PendingForDestination(account rawkey.PublicKey) []hash256.Hash256
	PendingAmount(sourceBlock hash256.Hash256) uint64
}

// NetworkConsensus is the external network/consensus collaborator.
type NetworkConsensus interface {
	BroadcastConfirmReq(block interface{})
	ActiveStart(block interface{}, onFinalized func())
	ProcessReceiveRepublish(block interface{})
}

// Observer receives account-busy notifications from the action scheduler.
type Observer func(account rawkey.PublicKey, busy bool)

// action is one scheduled thunk, ordered by priority then, for ties,
// insertion order (spec.md: "pop the first entry (highest priority =
// largest key)").
type action struct {
	priority uint64
	seq      uint64
	thunk    func()
}

type actionQueue []*action

func (q actionQueue) Len() int { return len(q) }
func (q actionQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q actionQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *actionQueue) Push(x interface{}) { *q = append(*q, x.(*action)) }
func (q *actionQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type cachedWork struct {
	root hash256.Hash256
	w    uint64
}

// Coordinator aggregates every open wallet (Keystore) by wallet id and
// owns the per-account action scheduler and work-cache maintenance built
// on top of them.
type Coordinator struct {
	log tplog.Logger

	st        *store.Store
	pool      *workpool.Pool
	ledger    Ledger
	consensus NetworkConsensus
	observer  Observer

	walletsMu sync.RWMutex
	wallets   map[hash256.Hash256]*keystore.Keystore

	actionMu sync.Mutex
	pending  map[rawkey.PublicKey]*actionQueue
	current  mapset.Set
	seq      uint64

	workCache *lru.Cache
}

// New builds a Coordinator. pool must already be running; New does not own
// its lifecycle. st, if non-nil, is used to open the coordinator's own
// write transactions for work queued from outside any caller-supplied
// txn's scope (SearchPending's consensus-confirmed receive dispatch).
func New(log tplog.Logger, pool *workpool.Pool, st *store.Store, ledger Ledger, consensus NetworkConsensus, observer Observer) *Coordinator {
	cache, err := lru.New(4096)
	if err != nil {
		panic("walletcoord: lru.New: " + err.Error())
	}
	if observer == nil {
		observer = func(rawkey.PublicKey, bool) {}
	}
	return &Coordinator{
		log:       tplog.CreateModuleLogger(tplogcmm.InfoLevel, "walletcoord", log),
		st:        st,
		pool:      pool,
		ledger:    ledger,
		consensus: consensus,
		observer:  observer,
		wallets:   make(map[hash256.Hash256]*keystore.Keystore),
		pending:   make(map[rawkey.PublicKey]*actionQueue),
		current:   mapset.NewSet(),
		workCache: cache,
	}
}

// walletID derives a wallet's map key from its root public key's Hash256
// encoding, matching the reference implementation's use of the wallet's
// own root public key as its identity.
func walletID(rootPublic rawkey.PublicKey) hash256.Hash256 {
	var h hash256.Hash256
	copy(h[:], rootPublic[:])
	return h
}

// RegisterWallet makes k reachable by wallets keyed off id.
func (c *Coordinator) RegisterWallet(id hash256.Hash256, k *keystore.Keystore) {
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	c.wallets[id] = k
}

// RegisterWalletBySeedPublic registers k under the identity derived from
// rootPublic via walletID, the reference implementation's own "wallet id
// is its root account" convention, and returns that id for callers that
// don't already have one chosen.
func (c *Coordinator) RegisterWalletBySeedPublic(rootPublic rawkey.PublicKey, k *keystore.Keystore) hash256.Hash256 {
	id := walletID(rootPublic)
	c.RegisterWallet(id, k)
	return id
}

// UnregisterWallet removes a wallet from the coordinator, without
// destroying its backing table.
func (c *Coordinator) UnregisterWallet(id hash256.Hash256) {
	c.walletsMu.Lock()
	defer c.walletsMu.Unlock()
	delete(c.wallets, id)
}

func (c *Coordinator) wallet(id hash256.Hash256) (*keystore.Keystore, error) {
	c.walletsMu.RLock()
	defer c.walletsMu.RUnlock()
	k, ok := c.wallets[id]
	if !ok {
		return nil, ErrUnknownWallet
	}
	return k, nil
}

// QueueWalletAction inserts thunk into account's priority queue. If the
// account had no in-flight action, this spawns doWalletActions(account) in
// a new goroutine — the node's "lightweight background task executor".
func (c *Coordinator) QueueWalletAction(account rawkey.PublicKey, priority uint64, thunk func()) {
	c.actionMu.Lock()
	q, ok := c.pending[account]
	if !ok {
		q = &actionQueue{}
		heap.Init(q)
		c.pending[account] = q
	}
	c.seq++
	heap.Push(q, &action{priority: priority, seq: c.seq, thunk: thunk})

	spawn := !c.current.Contains(account)
	if spawn {
		c.current.Add(account)
	}
	c.actionMu.Unlock()

	if spawn {
		go c.doWalletActions(account)
	}
}

// doWalletActions drains account's queue, running each thunk outside the
// lock, until the queue is empty, then clears current_actions for
// account. At most one instance of this ever runs per account, because
// QueueWalletAction only spawns it when current_actions did not already
// contain the account.
func (c *Coordinator) doWalletActions(account rawkey.PublicKey) {
	c.observer(account, true)
	defer c.observer(account, false)

	for {
		c.actionMu.Lock()
		q := c.pending[account]
		if q == nil || q.Len() == 0 {
			delete(c.pending, account)
			// The reference implementation asserts current_actions
			// contained account here. A violation means two drain loops
			// raced for the same account, which QueueWalletAction's
			// spawn-only-if-absent check should make impossible; treat it
			// as a recoverable bug rather than taking the whole node down.
			if !c.current.Contains(account) {
				c.log.Errorf("walletcoord: current_actions missing account %s at drain time", account.Hex())
			}
			c.current.Remove(account)
			c.actionMu.Unlock()
			return
		}
		next := heap.Pop(q).(*action)
		c.actionMu.Unlock()

		next.thunk()
	}
}

// CancelAction removes every pending thunk for account without running
// them — a node-supplied shutdown path, not something the reference
// implementation itself exposes per-action cancellation for (spec.md §5:
// "no per-action cancellation"), but useful for an orderly
// UnregisterWallet.
func (c *Coordinator) CancelAction(account rawkey.PublicKey) {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	delete(c.pending, account)
}

// WorkFetch returns a valid cached nonce for account under root, blocking
// to generate one if the cache is empty or stale.
func (c *Coordinator) WorkFetch(txn store.Txn, walletID_ hash256.Hash256, account rawkey.PublicKey, root hash256.Hash256) (uint64, error) {
	k, err := c.wallet(walletID_)
	if err != nil {
		return 0, err
	}

	if cached, ok := c.workCache.Get(account); ok {
		cw := cached.(cachedWork)
		if cw.root.Equal(root) && c.pool.Validate(root, cw.w) {
			return cw.w, nil
		}
	}

	w, err := k.WorkGet(txn, account)
	if err == nil && c.pool.Validate(root, w) {
		c.workCache.Add(account, cachedWork{root: root, w: w})
		return w, nil
	}

	return c.WorkGenerate(txn, walletID_, account, root)
}

// WorkEnsure asynchronously regenerates account's cached work if it is
// invalid under root, returning immediately either way.
func (c *Coordinator) WorkEnsure(walletID_ hash256.Hash256, account rawkey.PublicKey, root hash256.Hash256) {
	if cached, ok := c.workCache.Get(account); ok {
		cw := cached.(cachedWork)
		if cw.root.Equal(root) && c.pool.Validate(root, cw.w) {
			return
		}
	}

	c.QueueWalletAction(account, GeneratePriority, func() {
		_ = c.doWorkGenerateAsync(walletID_, account, root)
	})
}

func (c *Coordinator) doWorkGenerateAsync(walletID_ hash256.Hash256, account rawkey.PublicKey, root hash256.Hash256) error {
	w, err := c.pool.GenerateBlocking(root)
	if err != nil {
		return err
	}
	c.workCache.Add(account, cachedWork{root: root, w: w})
	return nil
}

// WorkUpdate persists w for account, but only if root still equals the
// ledger's latest_root for account at commit time — otherwise the cache
// is already stale and the write is silently discarded, matching spec.md
// §4.4's work_update.
func (c *Coordinator) WorkUpdate(txn store.Txn, walletID_ hash256.Hash256, account rawkey.PublicKey, root hash256.Hash256, w uint64) error {
	k, err := c.wallet(walletID_)
	if err != nil {
		return err
	}
	if c.ledger != nil && !c.ledger.LatestRoot(account).Equal(root) {
		return nil
	}
	return k.WorkPut(txn, account, w)
}

// WorkGenerate synchronously generates work for root and persists it via
// WorkUpdate, returning the generated nonce.
func (c *Coordinator) WorkGenerate(txn store.Txn, walletID_ hash256.Hash256, account rawkey.PublicKey, root hash256.Hash256) (uint64, error) {
	w, err := c.pool.GenerateBlocking(root)
	if err != nil {
		return 0, err
	}
	c.workCache.Add(account, cachedWork{root: root, w: w})
	if err := c.WorkUpdate(txn, walletID_, account, root, w); err != nil {
		return 0, err
	}
	return w, nil
}

// SearchPending scans the ledger's pending table for entries destined for
// any account in walletID, probing each pending source block at most once
// per call via the network/consensus collaborator and queueing a receive
// for every one that is confirmed, per spec.md §4.4's search_pending. It
// requires the wallet be unlocked, since
// fetching the set of accounts from a locked keystore is disallowed.
func (c *Coordinator) SearchPending(ctx context.Context, txn store.Txn, walletID_ hash256.Hash256) error {
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

	probed := mapset.NewSet()
	for _, account := range accounts {
		if c.ledger == nil {
			continue
		}
		pending := c.ledger.PendingForDestination(account)
		for _, sourceBlock := range pending {
			if probed.Contains(sourceBlock) {
				continue
			}
			probed.Add(sourceBlock)

			amount := c.ledger.PendingAmount(sourceBlock)
			if c.consensus != nil {
				account, sourceBlock, amount := account, sourceBlock, amount
				c.consensus.ActiveStart(sourceBlock, func() {
					c.QueueWalletAction(account, HighPriority, func() {
						c.receivePending(walletID_, account, sourceBlock, amount)
					})
				})
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// receivePending builds and dispatches a receive block for sourceBlock, a
// pending send now confirmed by consensus, once its queued action reaches
// the front of account's action queue. It opens its own write transaction
// against c.st rather than reusing SearchPending's caller-supplied txn,
// which is long gone by the time the consensus callback fires.
func (c *Coordinator) receivePending(walletID_ hash256.Hash256, account rawkey.PublicKey, sourceBlock hash256.Hash256, amount uint64) {
	if c.st == nil {
		c.log.Errorf("walletcoord: no store wired, cannot dispatch receive action for %s", account.Hex())
		return
	}
	err := c.st.Update(func(txn store.Txn) error {
		block, err := c.ReceiveAction(txn, walletID_, account, sourceBlock, amount)
		if err != nil {
			return err
		}
		if c.consensus != nil {
			c.consensus.ProcessReceiveRepublish(block)
		}
		return nil
	})
	if err != nil {
		c.log.Errorf("walletcoord: receive action for %s against pending %s failed: %v", account.Hex(), sourceBlock.Hex(), err)
	}
}
