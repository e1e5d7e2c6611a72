package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type Hash [HashSize]byte

func HashData(data []byte) Hash {
	return blake2b.Sum256(data)
}

// KeccakData hashes the input data using Keccak-256
func KeccakData(data []byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)

	var result Hash
	copy(result[:], hash.Sum(nil))
	return result
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash decodes a 0x prefixed (or bare) hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, err
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func HashView(h *Hash) []byte { return h[:] }

var (
	HashCodec    = jam.FixedBytes(HashSize, HashView)
	HashSetCodec = jam.SortedSet(HashSize, HashView)
	CompareHash  = jam.CompareBytes(HashView)
)
