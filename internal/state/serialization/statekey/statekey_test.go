package statekey

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func TestNewBasic(t *testing.T) {
	k := NewBasic(ChapterAccumulationOutputs)
	assert.Equal(t, uint8(16), k[0])
	assert.True(t, k.IsChapterKey())
	assert.False(t, k.IsServiceKey())
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name      string
		serviceId block.ServiceId
	}{
		{name: "basic case", serviceId: 100},
		{name: "max values", serviceId: block.ServiceId(math.MaxUint32)},
		{name: "zero values", serviceId: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stateKey := NewService(tt.serviceId)
			n := jam.EncodeUint32(uint32(tt.serviceId))

			// [255, s0, 0, s1, 0, s2, 0, s3, 0, 0, ...]
			assert.Equal(t, uint8(255), stateKey[0])
			assert.Equal(t, n[0], stateKey[1])
			assert.Equal(t, byte(0), stateKey[2])
			assert.Equal(t, n[1], stateKey[3])
			assert.Equal(t, byte(0), stateKey[4])
			assert.Equal(t, n[2], stateKey[5])
			assert.Equal(t, byte(0), stateKey[6])
			assert.Equal(t, n[3], stateKey[7])
			for i := 8; i < Size; i++ {
				assert.Equal(t, byte(0), stateKey[i], fmt.Sprintf("byte at position %d should be zero", i))
			}
			assert.True(t, stateKey.IsServiceKey())

			chapter, extracted := stateKey.ExtractChapterServiceID()
			assert.Equal(t, ChapterServiceIndex, chapter)
			assert.Equal(t, tt.serviceId, extracted)
		})
	}
}

func TestNewServiceDict(t *testing.T) {
	serviceId := block.ServiceId(1234)
	hashComponent := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	n := jam.EncodeUint32(uint32(serviceId))
	h := crypto.HashData(hashComponent)

	stateKey := NewServiceDict(serviceId, hashComponent)

	for i := 0; i < 4; i++ {
		assert.Equal(t, n[i], stateKey[i*2], "service byte %d", i)
		assert.Equal(t, h[i], stateKey[i*2+1], "hash byte %d", i)
	}
	assert.Equal(t, h[4:27], stateKey[8:])

	extractedId, extractedHash := stateKey.ExtractServiceIDHash()
	assert.Equal(t, serviceId, extractedId)
	assert.Equal(t, append([]byte{h[0], h[1], h[2]}, stateKey[7:]...), extractedHash)
}

func TestStorageKeyPrefix(t *testing.T) {
	k := []byte("key")
	want := NewServiceDict(7, append([]byte{0xff, 0xff, 0xff, 0xff}, k...))
	assert.Equal(t, want, NewStorage(7, k))
}

func TestPreimageKeys(t *testing.T) {
	blob := []byte("preimage")
	h := crypto.HashData(blob)

	lookup := NewPreimageLookup(3, h)
	assert.True(t, lookup.IsPreimageLookupKey(blob))
	assert.False(t, lookup.IsPreimageLookupKey([]byte("other")))

	meta := NewPreimageMeta(3, h, uint32(len(blob)))
	require.NotEqual(t, lookup, meta)
	want := NewServiceDict(3, append([]byte{8, 0, 0, 0}, h[:]...))
	assert.Equal(t, want, meta)
}
