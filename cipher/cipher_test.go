package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raicore/walletcore/hash256"
	"github.com/raicore/walletcore/rawkey"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var key rawkey.RawKey
	for i := range key {
		key[i] = byte(i)
	}

	salt := hash256.FromUint64(12345)
	iv := IVFromSalt(salt)

	var plain rawkey.RawKey
	for i := range plain {
		plain[i] = byte(0xAA)
	}

	ct, err := Encrypt(key, iv, plain)
	require.NoError(t, err)
	assert.NotEqual(t, rawkey.Ciphertext(plain), ct)

	recovered, err := Decrypt(key, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plain, recovered)
}

func TestEncryptOfZeroIsDeterministic(t *testing.T) {
	var key rawkey.RawKey
	key[0] = 0x42
	salt := hash256.FromUint64(1)
	iv := IVFromSalt(salt)

	var zero rawkey.RawKey
	ct1, err := Encrypt(key, iv, zero)
	require.NoError(t, err)
	ct2, err := Encrypt(key, iv, zero)
	require.NoError(t, err)

	assert.Equal(t, ct1, ct2)
}
