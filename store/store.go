// Package store implements the transactional ordered key-value contract
// the keystore is built on: named sub-tables (one per wallet) holding
// Hash256-keyed records, read/write transactions, and range iteration in
// key order. It is grounded on the teacher's ledger/backend packages —
// badger/backend.go for the badger.Txn/Iterator mechanics and
// backend_prefixed.go for the prefix-range approach to named sub-tables —
// but drops their multi-version snapshot machinery (versions.csv,
// NewTransactionAt/CommitAt), which nothing in this module's spec calls
// for: the keystore needs one current version per table, not a version
// history.
package store

import (
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
)

var (
	// ErrNotFound is returned by Table.Get when no entry exists for key.
	ErrNotFound = errors.New("store: key not found")

	// ErrTxnClosed is returned by Table.Put and Table.Delete when the
	// transaction is read-only.
	ErrTxnClosed = errors.New("store: transaction closed")
)

// Store is a transactional ordered key-value store supporting named
// sub-tables, backed by badger.
type Store struct {
	log tplog.Logger
	db  *badger.DB
}

// Open opens (creating if absent) a badger database at path.
func Open(log tplog.Logger, path string) (*Store, error) {
	sLog := tplog.CreateModuleLogger(tplogcmm.InfoLevel, "store", log)

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{log: sLog, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn under a read-only transaction. Any error fn returns is
// propagated; the transaction is always discarded afterward.
func (s *Store) View(fn func(Txn) error) error {
	return s.db.View(func(btxn *badger.Txn) error {
		return fn(&txn{btxn: btxn, writable: false})
	})
}

// Update runs fn under a read-write transaction. If fn returns nil the
// transaction commits; otherwise it rolls back implicitly.
func (s *Store) Update(fn func(Txn) error) error {
	return s.db.Update(func(btxn *badger.Txn) error {
		return fn(&txn{btxn: btxn, writable: true})
	})
}

// DropTable deletes every entry belonging to the named table. Unlike
// Get/Put/Delete this is not scoped to a caller-supplied transaction: badger
// only exposes prefix drop at the DB level.
func (s *Store) DropTable(name string) error {
	return s.db.DropPrefix(tablePrefix(name))
}

// Txn is a single read or write transaction, scoped to one or more named
// tables.
type Txn interface {
	// Table returns a handle for the named sub-table, valid for the
	// lifetime of this transaction.
	Table(name string) Table

	// Writable reports whether this transaction supports Put/Delete.
	Writable() bool
}

// Table is a named sub-table: a key range within the store's single badger
// keyspace, bounded by a length-prefixed table name so one table's name can
// never be a byte-prefix of another's.
type Table interface {
	Get(key hash256.Hash256) ([]byte, error)
	Put(key hash256.Hash256, value []byte) error
	Delete(key hash256.Hash256) error

	// Iterator walks every entry in the table in ascending key order.
	// Callers must Close it.
	Iterator() Iterator
}

// Iterator walks a Table's entries in ascending Hash256 order.
type Iterator interface {
	Valid() bool
	Next()
	Key() hash256.Hash256
	Value() []byte
	Close()
}

func tablePrefix(name string) []byte {
	p := make([]byte, 1+len(name))
	p[0] = byte(len(name))
	copy(p[1:], name)
	return p
}

type txn struct {
	btxn     *badger.Txn
	writable bool
}

func (t *txn) Writable() bool { return t.writable }

func (t *txn) Table(name string) Table {
	return &table{txn: t, prefix: tablePrefix(name)}
}

type table struct {
	txn    *txn
	prefix []byte
}

func (tb *table) fullKey(key hash256.Hash256) []byte {
	full := make([]byte, 0, len(tb.prefix)+hash256.Size)
	full = append(full, tb.prefix...)
	full = append(full, key[:]...)
	return full
}

func (tb *table) Get(key hash256.Hash256) ([]byte, error) {
	item, err := tb.txn.btxn.Get(tb.fullKey(key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tb *table) Put(key hash256.Hash256, value []byte) error {
	if !tb.txn.writable {
		return ErrTxnClosed
	}
	return tb.txn.btxn.Set(tb.fullKey(key), value)
}

func (tb *table) Delete(key hash256.Hash256) error {
	if !tb.txn.writable {
		return ErrTxnClosed
	}
	return tb.txn.btxn.Delete(tb.fullKey(key))
}

func (tb *table) Iterator() Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = tb.prefix

	it := tb.txn.btxn.NewIterator(opts)
	it.Rewind()

	return &iterator{prefix: tb.prefix, it: it}
}

type iterator struct {
	prefix []byte
	it     *badger.Iterator
}

func (i *iterator) Valid() bool {
	return i.it.ValidForPrefix(i.prefix)
}

func (i *iterator) Next() {
	i.it.Next()
}

func (i *iterator) Key() hash256.Hash256 {
	full := i.it.Item().Key()
	raw := full[len(i.prefix):]

	var h hash256.Hash256
	copy(h[:], raw)
	return h
}

func (i *iterator) Value() []byte {
	val, err := i.it.Item().ValueCopy(nil)
	if err != nil {
		return nil
	}
	return val
}

func (i *iterator) Close() {
	i.it.Close()
}
