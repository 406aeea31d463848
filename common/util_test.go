package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesCopy(t *testing.T) {
	b := []byte{0x01, 0x02, 0x05, 0x05, 0x07}
	c := BytesCopy(b)

	assert.Equal(t, b, c)

	c[0] = 0xff
	assert.NotEqual(t, b[0], c[0])
}
