package common

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// DeterministicShuffle performs a deterministic shuffle of the sequence [0, length) based on the hash h (appendix F)
func DeterministicShuffle(length uint32, h crypto.Hash) []uint32 {
	s := make([]uint32, length)
	for i := range s {
		s[i] = uint32(i)
	}
	return Shuffle(s, h)
}

// Shuffle is the Fisher-Yates shuffle F(s, h) driven by the numeric sequence
// Q_|s|(h). The input is not modified.
func Shuffle(s []uint32, h crypto.Hash) []uint32 {
	r := generateRandomNumbers(h, uint32(len(s)))
	rest := slices.Clone(s)
	out := make([]uint32, 0, len(s))
	for i := range s {
		l := uint32(len(rest))
		index := r[i] % l
		out = append(out, rest[index])
		rest[index] = rest[l-1]
		rest = rest[:l-1]
	}
	return out
}

// generateRandomNumbers (Q_l(h)) generates a sequence of l uint32 numbers from the hash h
func generateRandomNumbers(h crypto.Hash, l uint32) []uint32 {
	r := make([]uint32, l)
	var block crypto.Hash
	for i := uint32(0); i < l; i++ {
		if i%8 == 0 {
			block = crypto.HashData(append(h[:], jam.EncodeUint32(i/8)...))
		}
		p := (4 * i) % 32
		r[i] = jam.DeserializeTrivialNatural[uint32](block[p : p+4])
	}
	return r
}
