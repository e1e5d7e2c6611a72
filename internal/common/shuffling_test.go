package common

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/crypto"
)

func TestDeterministicShuffle(t *testing.T) {
	h := crypto.HashData([]byte("entropy"))
	for _, n := range []uint32{0, 1, 7, 8, 9, 100} {
		s := DeterministicShuffle(n, h)
		require.Len(t, s, int(n))

		sorted := slices.Clone(s)
		slices.Sort(sorted)
		for i, v := range sorted {
			assert.Equal(t, uint32(i), v)
		}
		assert.Equal(t, s, DeterministicShuffle(n, h))
	}
}

func TestShuffleDependsOnEntropy(t *testing.T) {
	a := DeterministicShuffle(64, crypto.Hash{1})
	b := DeterministicShuffle(64, crypto.Hash{2})
	assert.NotEqual(t, a, b)
}

func TestShuffleKeepsInput(t *testing.T) {
	in := []uint32{5, 5, 6, 6}
	out := Shuffle(in, crypto.Hash{3})
	assert.Equal(t, []uint32{5, 5, 6, 6}, in)
	slices.Sort(out)
	assert.Equal(t, in, out)
}

func TestGenerateRandomNumbers(t *testing.T) {
	h := crypto.Hash{9}
	r := generateRandomNumbers(h, 9)
	first := crypto.HashData(append(h[:], 0, 0, 0, 0))
	second := crypto.HashData(append(h[:], 1, 0, 0, 0))
	assert.Equal(t, uint32(first[4])|uint32(first[5])<<8|uint32(first[6])<<16|uint32(first[7])<<24, r[1])
	assert.Equal(t, uint32(second[0])|uint32(second[1])<<8|uint32(second[2])<<16|uint32(second[3])<<24, r[8])
}
