package mountain_ranges

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// PeaksCodec is E_M, a range's peaks as a sequence of optional hashes (eq. E.9 v0.6.7).
var PeaksCodec = jam.Sequence(jam.Optional(crypto.HashCodec))

type MMR struct {
	hashFunc func([]byte) crypto.Hash
}

// New returns a merkle mountain range over the given hash function, keccak for the accumulation output belt.
func New(hashFunc func([]byte) crypto.Hash) *MMR {
	return &MMR{hashFunc: hashFunc}
}

// Append is A(r, l, H) ↦ P(r, l, 0, H) (eq. E.8 v0.6.7). The input peaks are not modified.
func (m *MMR) Append(r []*crypto.Hash, l crypto.Hash) []*crypto.Hash {
	return m.placePeak(r, &l, 0)
}

// placePeak is P:
//
//	P(r, l, n, H) ↦ r ++ l                             if n ≥ |r|
//	                R(r, n, l)                         if n < |r| ∧ rₙ = Ø
//	                P(R(r, n, Ø), H(rₙ ⌢ l), n + 1, H)  otherwise
func (m *MMR) placePeak(peaks []*crypto.Hash, item *crypto.Hash, position int) []*crypto.Hash {
	if position >= len(peaks) {
		result := make([]*crypto.Hash, len(peaks), len(peaks)+1)
		copy(result, peaks)
		return append(result, item)
	}

	if peaks[position] == nil {
		return replacePeakAt(peaks, position, item)
	}

	combined := make([]byte, 0, 2*crypto.HashSize)
	combined = append(combined, peaks[position][:]...)
	combined = append(combined, item[:]...)
	hash := m.hashFunc(combined)
	return m.placePeak(replacePeakAt(peaks, position, nil), &hash, position+1)
}

// replacePeakAt is R: a copy of peaks with the index-th element set to value.
func replacePeakAt(peaks []*crypto.Hash, index int, value *crypto.Hash) []*crypto.Hash {
	result := make([]*crypto.Hash, len(peaks))
	copy(result, peaks)
	result[index] = value
	return result
}

func (m *MMR) Encode(peaks []*crypto.Hash) ([]byte, error) {
	return jam.Marshal(PeaksCodec, peaks)
}

// SuperPeak is M_R (eq. E.10 v0.6.7):
//
//	M_R(h) = H0                                  if |h| = 0
//	         h0                                  if |h| = 1
//	         H_K($peak ⌢ M_R(h...|h|−1) ⌢ h|h|−1) otherwise
//
// where h are the non-empty peaks.
func (m *MMR) SuperPeak(peaks []*crypto.Hash) crypto.Hash {
	validPeaks := make([]crypto.Hash, 0, len(peaks))
	for _, peak := range peaks {
		if peak != nil {
			validPeaks = append(validPeaks, *peak)
		}
	}
	return m.superPeak(validPeaks)
}

func (m *MMR) superPeak(peaks []crypto.Hash) crypto.Hash {
	switch len(peaks) {
	case 0:
		return crypto.Hash{}
	case 1:
		return peaks[0]
	}

	last := peaks[len(peaks)-1]
	sub := m.superPeak(peaks[:len(peaks)-1])

	combined := make([]byte, 0, 4+2*crypto.HashSize)
	combined = append(combined, "peak"...)
	combined = append(combined, sub[:]...)
	combined = append(combined, last[:]...)
	return m.hashFunc(combined)
}
