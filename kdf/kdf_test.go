package kdf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raicore/walletcore/config"
	"github.com/raicore/walletcore/hash256"
)

func TestDeriveIsDeterministic(t *testing.T) {
	salt := hash256.FromUint64(1)
	a := Derive(config.Test, []byte("hunter2"), salt)
	b := Derive(config.Test, []byte("hunter2"), salt)

	assert.Equal(t, a, b)
}

func TestDeriveDiffersByPassword(t *testing.T) {
	salt := hash256.FromUint64(1)
	a := Derive(config.Test, []byte(""), salt)
	b := Derive(config.Test, []byte("hunter2"), salt)

	assert.NotEqual(t, a, b)
}

func TestDeriveDiffersBySalt(t *testing.T) {
	a := Derive(config.Test, []byte("hunter2"), hash256.FromUint64(1))
	b := Derive(config.Test, []byte("hunter2"), hash256.FromUint64(2))

	assert.NotEqual(t, a, b)
}

func TestDeriveConcurrentSafe(t *testing.T) {
	var wg sync.WaitGroup
	salt := hash256.FromUint64(7)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Derive(config.Test, []byte("concurrent"), salt)
		}()
	}
	wg.Wait()
}
