package workpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/hash256"
	tplog "github.com/raicore/walletcore/log"
	tplogcmm "github.com/raicore/walletcore/log/common"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	l, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.TextFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)
	p := New(config.Test, l, nil)
	t.Cleanup(p.Stop)
	return p
}

func TestGenerateBlockingProducesValidWork(t *testing.T) {
	p := testPool(t)
	root := hash256.FromUint64(42)

	w, err := p.GenerateBlocking(root)
	require.NoError(t, err)
	assert.True(t, p.Validate(root, w))
}

func TestValidateRejectsAlteredNonce(t *testing.T) {
	p := testPool(t)
	root := hash256.FromUint64(7)

	w, err := p.GenerateBlocking(root)
	require.NoError(t, err)
	assert.False(t, p.Validate(root, w^1))
}

func TestCancelDeliversNoResult(t *testing.T) {
	l, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.TextFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	// An unsatisfiable threshold keeps the sole worker permanently busy on
	// the first request, so the second is guaranteed still queued when
	// Cancel runs.
	impossible := config.Test
	impossible.WorkThreshold = 0
	p := New(impossible, l, nil)
	t.Cleanup(func() { p.Cancel(hash256.FromUint64(1)); p.Stop() })

	p.Generate(hash256.FromUint64(1), func(w uint64, ok bool) {})

	root := hash256.FromUint64(99)
	done := make(chan struct{})
	p.Generate(root, func(w uint64, ok bool) {
		assert.False(t, ok)
		close(done)
	})
	p.Cancel(root)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancel callback never ran")
	}
}

func TestStopDrainsQueueThenExits(t *testing.T) {
	l, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.TextFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)
	p := New(config.Test, l, nil)

	root := hash256.FromUint64(5)
	done := make(chan bool, 1)
	p.Generate(root, func(w uint64, ok bool) { done <- ok })

	p.Stop()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("queued request was never drained before Stop returned")
	}
}
