package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	l, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.TextFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	s, err := Open(l, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)

	key := hash256.FromUint64(1)
	require.NoError(t, s.Update(func(txn Txn) error {
		return txn.Table("wallet-a").Put(key, []byte("hello"))
	}))

	var got []byte
	require.NoError(t, s.View(func(txn Txn) error {
		var err error
		got, err = txn.Table("wallet-a").Get(key)
		return err
	}))
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, s.Update(func(txn Txn) error {
		return txn.Table("wallet-a").Delete(key)
	}))

	err := s.View(func(txn Txn) error {
		_, err := txn.Table("wallet-a").Get(key)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTablesAreIsolated(t *testing.T) {
	s := newTestStore(t)

	key := hash256.FromUint64(2)
	require.NoError(t, s.Update(func(txn Txn) error {
		return txn.Table("wallet-a").Put(key, []byte("a"))
	}))

	err := s.View(func(txn Txn) error {
		_, err := txn.Table("wallet-b").Get(key)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIteratorOrderAndScope(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(txn Txn) error {
		tbl := txn.Table("wallet-a")
		for _, v := range []uint64{5, 1, 3} {
			if err := tbl.Put(hash256.FromUint64(v), []byte{byte(v)}); err != nil {
				return err
			}
		}
		return txn.Table("wallet-b").Put(hash256.FromUint64(99), []byte("other"))
	}))

	var seen []uint64
	require.NoError(t, s.View(func(txn Txn) error {
		it := txn.Table("wallet-a").Iterator()
		defer it.Close()
		for ; it.Valid(); it.Next() {
			seen = append(seen, it.Key().Low64())
		}
		return nil
	}))

	assert.Equal(t, []uint64{1, 3, 5}, seen)
}

func TestDropTable(t *testing.T) {
	s := newTestStore(t)

	key := hash256.FromUint64(3)
	require.NoError(t, s.Update(func(txn Txn) error {
		return txn.Table("wallet-a").Put(key, []byte("x"))
	}))

	require.NoError(t, s.DropTable("wallet-a"))

	err := s.View(func(txn Txn) error {
		_, err := txn.Table("wallet-a").Get(key)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteOnReadOnlyTxnFails(t *testing.T) {
	s := newTestStore(t)

	err := s.View(func(txn Txn) error {
		return txn.Table("wallet-a").Put(hash256.FromUint64(1), []byte("nope"))
	})
	assert.Error(t, err)
}
