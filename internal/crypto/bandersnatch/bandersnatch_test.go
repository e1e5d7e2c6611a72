package bandersnatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/crypto"
)

var _ Verifier = Insecure{}
var _ Verifier = (*Native)(nil)

func TestInsecureOutputMatchesVerify(t *testing.T) {
	var sig crypto.BandersnatchSignature
	sig[0], sig[40] = 7, 9

	out, ok := Insecure{}.Verify(crypto.BandersnatchPublicKey{}, []byte("jam_entropy"), nil, sig)
	require.True(t, ok)

	out2, err := Insecure{}.OutputHash(sig)
	require.NoError(t, err)
	assert.Equal(t, out, out2)

	// only the output point contributes
	sig[40] = 1
	out3, _ := Insecure{}.OutputHash(sig)
	assert.Equal(t, out, out3)
}

func TestInsecureRingCommitmentDependsOnKeys(t *testing.T) {
	a, err := Insecure{}.RingCommitment([]crypto.BandersnatchPublicKey{{1}, {2}})
	require.NoError(t, err)
	b, err := Insecure{}.RingCommitment([]crypto.BandersnatchPublicKey{{2}, {1}})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLoadMissingLibrary(t *testing.T) {
	_, err := Load("/nonexistent/libbandersnatch.so")
	require.Error(t, err)
}
