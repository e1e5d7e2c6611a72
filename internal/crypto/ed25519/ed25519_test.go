package ed25519

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify(t *testing.T) {
	pub, priv := NewKeyFromSeed(make([]byte, 32))
	msg := []byte("jam_valid")

	sig := Sign(priv, msg)
	assert.True(t, Verify(pub, msg, sig))
	assert.False(t, Verify(pub, []byte("jam_invalid"), sig))

	sig[0] ^= 1
	assert.False(t, Verify(pub, msg, sig))
}
