package hash256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytesRoundTrip(t *testing.T) {
	raw := make([]byte, Size)
	for i := range raw {
		raw[i] = byte(i)
	}

	h, err := FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, h.Bytes())

	_, err = FromBytes(raw[:31])
	assert.Error(t, err)
}

func TestFromUint64(t *testing.T) {
	h := FromUint64(6)
	assert.Equal(t, uint64(6), h.Low64())
	assert.False(t, h.GreaterThanUint64Max())
}

func TestHexRoundTrip(t *testing.T) {
	h := FromUint64(42)
	h2, err := FromHex(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, h2)
}

func TestCompareAndLess(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestXor(t *testing.T) {
	a := FromUint64(0xff)
	b := FromUint64(0x0f)
	assert.Equal(t, FromUint64(0xf0), a.Xor(b))
}

func TestGreaterThanUint64Max(t *testing.T) {
	small := FromUint64(1 << 32)
	assert.False(t, small.GreaterThanUint64Max())

	var big Hash256
	big[0] = 0x01
	assert.True(t, big.GreaterThanUint64Max())
}

func TestWords(t *testing.T) {
	h := FromUint64(1)
	w := h.Words()
	assert.Equal(t, uint64(1), w[3])
	assert.Equal(t, uint64(0), w[0])
}
