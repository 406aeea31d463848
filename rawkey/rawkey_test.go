package rawkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZero(t *testing.T) {
	k, err := FromBytes(bytesOf(1))
	require.NoError(t, err)
	assert.NotEqual(t, RawKey{}, k)

	k.Zero()
	assert.Equal(t, RawKey{}, k)
}

func TestEqual(t *testing.T) {
	a, _ := FromBytes(bytesOf(7))
	b, _ := FromBytes(bytesOf(7))
	c, _ := FromBytes(bytesOf(8))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestPublicKeyHex(t *testing.T) {
	p, err := PublicKeyFromBytes(bytesOf(0xAB))
	require.NoError(t, err)
	assert.Len(t, p.Hex(), 64)
}

func bytesOf(b byte) []byte {
	out := make([]byte, Size)
	for i := range out {
		out[i] = b
	}
	return out
}
