package jam

import (
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeUint64(t *testing.T) {
	testCases := []struct {
		input    uint64
		expected []byte
	}{
		// l = 0
		{0, []byte{0}},
		{1, []byte{1}},
		{math.MaxInt8, []byte{127}},
		// l = 1
		{1 << 7, []byte{128, 128}},
		{math.MaxUint8, []byte{128, 255}},
		{1 << 8, []byte{129, 0}},
		{(1 << 14) - 1, []byte{191, 255}},
		// l = 2
		{1 << 14, []byte{192, 0, 64}},
		{math.MaxUint16, []byte{192, 255, 255}},
		{(1 << 21) - 1, []byte{223, 255, 255}},
		// l = 3
		{1 << 21, []byte{224, 0, 0, 32}},
		{(1 << 28) - 1, []byte{239, 255, 255, 255}},
		// l = 4
		{1 << 28, []byte{240, 0, 0, 0, 16}},
		// l = 7
		{1 << 49, []byte{254, 0, 0, 0, 0, 0, 0, 2}},
		{(1 << 56) - 1, []byte{254, 255, 255, 255, 255, 255, 255, 255}},
		// l = 8
		{1 << 56, []byte{255, 0, 0, 0, 0, 0, 0, 0, 1}},
		{1 << 63, []byte{255, 0, 0, 0, 0, 0, 0, 0, 128}},
		{math.MaxUint64, []byte{255, 255, 255, 255, 255, 255, 255, 255, 255}},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("uint64(%d)", tc.input), func(t *testing.T) {
			serialized := SerializeUint64(tc.input)
			assert.Equal(t, tc.expected, serialized)

			decoded, n, err := DeserializeUint64(serialized)
			require.NoError(t, err)
			assert.Equal(t, tc.input, decoded)
			assert.Equal(t, len(serialized), n)
			assert.Equal(t, len(serialized), Natural.EncodedSize(tc.input))
		})
	}
}

func TestSerializeBigNaturalRejectsOverflow(t *testing.T) {
	maxU64 := new(big.Int).SetUint64(math.MaxUint64)
	b, err := SerializeBigNatural(maxU64)
	require.NoError(t, err)
	assert.Equal(t, SerializeUint64(math.MaxUint64), b)

	_, err = SerializeBigNatural(new(big.Int).Add(maxU64, big.NewInt(1)))
	require.ErrorIs(t, err, ErrNaturalOverflow)
}

func TestDeserializeUint64Truncated(t *testing.T) {
	_, _, err := DeserializeUint64([]byte{192, 0})
	require.ErrorIs(t, err, ErrUnexpectedEOF)

	_, _, err = DeserializeUint64(nil)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestCompactRejectsNarrowOverflow(t *testing.T) {
	_, err := Unmarshal(Compact[uint16](), SerializeUint64(1<<20))
	require.ErrorIs(t, err, ErrNaturalOverflow)
}
