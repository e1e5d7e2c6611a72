package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b uint32
		want uint32
		ok   bool
	}{
		{"zero plus zero", 0, 0, 0, true},
		{"small values", 1, 2, 3, true},
		{"at boundary", math.MaxUint32 - 1, 1, math.MaxUint32, true},
		{"overflow max plus one", math.MaxUint32, 1, 0, false},
		{"overflow max plus max", math.MaxUint32, math.MaxUint32, math.MaxUint32 - 1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Add(tc.a, tc.b)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestSub(t *testing.T) {
	v, ok := Sub[uint64](10, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), v)

	_, ok = Sub[uint64](3, 10)
	assert.False(t, ok)

	v, ok = Sub[uint64](5, 5)
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestMul(t *testing.T) {
	v, ok := Mul[uint64](1<<32, 1<<31)
	assert.True(t, ok)
	assert.Equal(t, uint64(1<<63), v)

	_, ok = Mul[uint64](1<<32, 1<<32)
	assert.False(t, ok)

	v, ok = Mul[uint32](5, 1<<16)
	assert.True(t, ok)
	assert.Equal(t, uint32(5<<16), v)

	_, ok = Mul[uint32](1<<16, 1<<16)
	assert.False(t, ok)

	_, ok = Mul[uint8](16, 16)
	assert.False(t, ok)
}

func TestSaturating(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), SaturatingAdd[uint64](math.MaxUint64, 1))
	assert.Equal(t, uint64(3), SaturatingAdd[uint64](1, 2))
	assert.Equal(t, uint64(0), SaturatingSub[uint64](1, 2))
	assert.Equal(t, uint16(1), SaturatingSub[uint16](3, 2))
}
