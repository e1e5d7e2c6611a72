package jam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type hash [32]byte

func hashView(h *hash) []byte { return h[:] }

type inner struct {
	A uint64
	B uint32
	C uint16
	D uint8
}

type outer struct {
	Flag   bool
	Hash   hash
	Blob   []byte
	Count  uint32
	Items  []inner
	Maybe  *uint32
	Lookup map[hash]uint64
}

var innerCodec = jam.Struct(
	jam.Field("a", jam.U64, func(s *inner) *uint64 { return &s.A }),
	jam.Field("b", jam.U32, func(s *inner) *uint32 { return &s.B }),
	jam.Field("c", jam.U16, func(s *inner) *uint16 { return &s.C }),
	jam.Field("d", jam.U8, func(s *inner) *uint8 { return &s.D }),
)

var outerCodec = jam.Struct(
	jam.Field("flag", jam.Bool, func(s *outer) *bool { return &s.Flag }),
	jam.Field("hash", jam.FixedBytes(32, hashView), func(s *outer) *hash { return &s.Hash }),
	jam.Field("blob", jam.Blob, func(s *outer) *[]byte { return &s.Blob }),
	jam.Field("count", jam.Compact[uint32](), func(s *outer) *uint32 { return &s.Count }),
	jam.Field("items", jam.Sequence(innerCodec), func(s *outer) *[]inner { return &s.Items }),
	jam.Field("maybe", jam.Optional(jam.U32), func(s *outer) **uint32 { return &s.Maybe }),
	jam.Field("lookup", jam.SortedMap(jam.FixedBytes(32, hashView), jam.U64, jam.CompareBytes(hashView)),
		func(s *outer) *map[hash]uint64 { return &s.Lookup }),
)

func TestStructRoundTrip(t *testing.T) {
	seven := uint32(7)
	testCases := []struct {
		name  string
		value outer
	}{
		{name: "zero", value: outer{Lookup: map[hash]uint64{}}},
		{name: "populated", value: outer{
			Flag:  true,
			Hash:  hash{1, 2, 3},
			Blob:  []byte("hello"),
			Count: 1 << 20,
			Items: []inner{{1, 2, 3, 4}, {5, 6, 7, 8}},
			Maybe: &seven,
			Lookup: map[hash]uint64{
				{9}: 1,
				{1}: 2,
				{5}: 3,
			},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := jam.Marshal(outerCodec, tc.value)
			require.NoError(t, err)
			require.Len(t, encoded, outerCodec.EncodedSize(tc.value))

			decoded, n, err := outerCodec.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, len(encoded), n)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestSortedMapEncodingIgnoresInsertionOrder(t *testing.T) {
	c := jam.SortedMap(jam.U32, jam.Blob, jam.CompareUnsigned[uint32])

	a := map[uint32][]byte{}
	a[3] = []byte{3}
	a[1] = []byte{1}
	a[2] = []byte{2}

	b := map[uint32][]byte{}
	b[2] = []byte{2}
	b[3] = []byte{3}
	b[1] = []byte{1}

	encodedA := jam.MustMarshal(c, a)
	encodedB := jam.MustMarshal(c, b)
	assert.Equal(t, encodedA, encodedB)
	// first key after the count is 1
	assert.Equal(t, []byte{3, 1, 0, 0, 0}, encodedA[:5])

	decoded, err := jam.Unmarshal(c, encodedA)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestSortedMapRejectsUnsortedInput(t *testing.T) {
	c := jam.SortedMap(jam.U8, jam.U8, jam.CompareUnsigned[uint8])
	_, err := jam.Unmarshal(c, []byte{2, 5, 0, 1, 0})
	require.ErrorIs(t, err, jam.ErrUnsortedMapKeys)
}

func TestBitSequence(t *testing.T) {
	bits := jam.BitSequence{true, false, false, false, false, false, false, false, false, true}

	fixed := jam.FixedBitSequence(10)
	encoded := jam.MustMarshal(fixed, bits)
	assert.Equal(t, []byte{0b00000001, 0b00000010}, encoded)

	decoded, err := jam.Unmarshal(fixed, encoded)
	require.NoError(t, err)
	assert.Equal(t, bits, decoded)

	prefixed := jam.MustMarshal(jam.Bits, bits)
	assert.Equal(t, []byte{10, 0b00000001, 0b00000010}, prefixed)
	decoded, err = jam.Unmarshal(jam.Bits, prefixed)
	require.NoError(t, err)
	assert.Equal(t, bits, decoded)
}

type shape interface{ isShape() }

type circle struct{ R uint32 }
type square struct{ Side uint8 }
type dot struct{}

func (circle) isShape() {}
func (square) isShape() {}
func (dot) isShape()    {}

var shapeCodec = jam.Union(
	jam.Case(0, jam.U32,
		func(r uint32) shape { return circle{R: r} },
		func(s shape) (uint32, bool) {
			c, ok := s.(circle)
			return c.R, ok
		}),
	jam.Case(1, jam.U8,
		func(side uint8) shape { return square{Side: side} },
		func(s shape) (uint8, bool) {
			q, ok := s.(square)
			return q.Side, ok
		}),
	jam.Case(2, jam.Nothing,
		func(jam.Empty) shape { return dot{} },
		func(s shape) (jam.Empty, bool) {
			_, ok := s.(dot)
			return jam.Empty{}, ok
		}),
)

func TestUnion(t *testing.T) {
	for _, s := range []shape{circle{R: 5}, square{Side: 3}, dot{}} {
		encoded, err := jam.Marshal(shapeCodec, s)
		require.NoError(t, err)
		decoded, err := jam.Unmarshal(shapeCodec, encoded)
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
	}

	assert.Equal(t, []byte{1, 3}, jam.MustMarshal(shapeCodec, square{Side: 3}))

	_, err := jam.Unmarshal(shapeCodec, []byte{9})
	require.Error(t, err)
}

func TestFixedLengthErrors(t *testing.T) {
	_, err := jam.Marshal(jam.FixedSequence(jam.U8, 3), []uint8{1, 2})
	require.ErrorIs(t, err, jam.ErrFixedLength)

	_, err = jam.Unmarshal(jam.U32, []byte{1, 2})
	require.ErrorIs(t, err, jam.ErrUnexpectedEOF)

	_, err = jam.Unmarshal(jam.U8, []byte{1, 2})
	require.ErrorIs(t, err, jam.ErrTrailingBytes)

	_, err = jam.Unmarshal(jam.Blob, []byte{5, 1})
	require.Error(t, err)
}

func TestSortedSet(t *testing.T) {
	c := jam.SortedSet(32, hashView)
	encoded := jam.MustMarshal(c, []hash{{3}, {1}, {2}})
	decoded, err := jam.Unmarshal(c, encoded)
	require.NoError(t, err)
	assert.Equal(t, []hash{{1}, {2}, {3}}, decoded)

	unsorted := append([]byte{2}, append(make([]byte, 32), make([]byte, 32)...)...)
	_, err = jam.Unmarshal(c, unsorted)
	require.ErrorIs(t, err, jam.ErrUnsortedSet)
}
