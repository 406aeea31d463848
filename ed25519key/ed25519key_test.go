package ed25519key

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raicore/walletcore/rawkey"
)

func TestPublicKeyFromSeedDeterministic(t *testing.T) {
	var seed rawkey.RawKey
	for i := range seed {
		seed[i] = 0x01
	}

	p1 := PublicKeyFromSeed(seed)
	p2 := PublicKeyFromSeed(seed)
	assert.Equal(t, p1, p2)
}

func TestSignVerify(t *testing.T) {
	var seed rawkey.RawKey
	for i := range seed {
		seed[i] = 0x02
	}

	pub := PublicKeyFromSeed(seed)
	msg := []byte("hello wallet")

	sig := Sign(seed, msg)
	assert.True(t, Verify(pub, msg, sig))
	assert.False(t, Verify(pub, []byte("tampered"), sig))
}

func TestGenerateSeed(t *testing.T) {
	s1, err := GenerateSeed(rand.Reader)
	require.NoError(t, err)
	s2, err := GenerateSeed(rand.Reader)
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
}

func TestGenerateSeedShortRead(t *testing.T) {
	_, err := GenerateSeed(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
