package mountain_ranges

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/crypto"
)

func mockHashData(data []byte) crypto.Hash {
	var h crypto.Hash
	copy(h[:], data)
	return h
}

func TestMMR(t *testing.T) {
	tests := []struct {
		name          string
		toAppend      [][]byte
		expectedPeaks func() []*crypto.Hash
	}{
		{
			name:          "empty",
			toAppend:      [][]byte{},
			expectedPeaks: func() []*crypto.Hash { return []*crypto.Hash{} },
		},
		{
			name:     "single_item",
			toAppend: [][]byte{[]byte("1")},
			expectedPeaks: func() []*crypto.Hash {
				h := mockHashData([]byte("1"))
				return []*crypto.Hash{&h}
			},
		},
		{
			name:     "two_items",
			toAppend: [][]byte{[]byte("1"), []byte("2")},
			expectedPeaks: func() []*crypto.Hash {
				h1 := mockHashData([]byte("1"))
				h2 := mockHashData([]byte("2"))
				hash := mockHashData(append(h1[:], h2[:]...))
				return []*crypto.Hash{nil, &hash}
			},
		},
		{
			name:     "three_items",
			toAppend: [][]byte{[]byte("1"), []byte("2"), []byte("3")},
			expectedPeaks: func() []*crypto.Hash {
				h1 := mockHashData([]byte("1"))
				h2 := mockHashData([]byte("2"))
				h12 := mockHashData(append(h1[:], h2[:]...))
				h3 := mockHashData([]byte("3"))
				return []*crypto.Hash{&h3, &h12}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mmr := New(mockHashData)
			peaks := make([]*crypto.Hash, 0)
			for _, item := range tc.toAppend {
				peaks = mmr.Append(peaks, mockHashData(item))
			}
			assert.Equal(t, tc.expectedPeaks(), peaks)

			encoded, err := mmr.Encode(peaks)
			require.NoError(t, err)
			assert.Equal(t, byte(len(peaks)), encoded[0])
		})
	}
}

func TestAppendDoesNotModifyInput(t *testing.T) {
	mmr := New(crypto.KeccakData)
	h := crypto.Hash{1}
	peaks := []*crypto.Hash{&h}

	next := mmr.Append(peaks, crypto.Hash{2})
	require.Len(t, next, 2)
	assert.Nil(t, next[0])
	assert.Equal(t, &h, peaks[0])
	assert.Equal(t, crypto.Hash{1}, h)
}

func TestSuperPeak(t *testing.T) {
	mmr := New(crypto.KeccakData)

	assert.Equal(t, crypto.Hash{}, mmr.SuperPeak(nil))
	assert.Equal(t, crypto.Hash{}, mmr.SuperPeak([]*crypto.Hash{nil, nil}))

	a, b, c := crypto.Hash{1}, crypto.Hash{2}, crypto.Hash{3}
	assert.Equal(t, b, mmr.SuperPeak([]*crypto.Hash{nil, &b}))

	ab := crypto.KeccakData(append(append([]byte("peak"), a[:]...), b[:]...))
	assert.Equal(t, ab, mmr.SuperPeak([]*crypto.Hash{&a, nil, &b}))

	abc := crypto.KeccakData(append(append([]byte("peak"), ab[:]...), c[:]...))
	assert.Equal(t, abc, mmr.SuperPeak([]*crypto.Hash{&a, &b, &c}))
}
