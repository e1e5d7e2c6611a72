package statekey

import (
	"encoding/hex"
	"math"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

const (
	// Chapter component for service account state keys.
	ChapterServiceIndex uint8 = 255
	// Hash component for storage state keys begins with this value little endian encoded.
	HashStorageIndex uint32 = math.MaxUint32
	// Hash component for preimage lookup state keys begins with this value little endian encoded.
	HashPreimageLookupIndex uint32 = math.MaxUint32 - 1

	Size = 31
)

// Chapter indices of the state components (eq. D.2 v0.6.7).
const (
	ChapterAuthorizerPools uint8 = iota + 1
	ChapterAuthorizerQueues
	ChapterRecentBlocks
	ChapterSafrole
	ChapterPastJudgements
	ChapterEntropy
	ChapterQueuedValidators
	ChapterCurrentValidators
	ChapterArchivedValidators
	ChapterPendingReports
	ChapterTimeslot
	ChapterPrivilegedServices
	ChapterActivityStatistics
	ChapterAccumulationQueue
	ChapterAccumulationHistory
	ChapterAccumulationOutputs
)

// The output of the state key constructor function.
type StateKey [Size]byte

func (s StateKey) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func View(s *StateKey) []byte { return s[:] }

var (
	Codec   = jam.FixedBytes(Size, View)
	Compare = jam.CompareBytes(View)
)

// NewBasic is the first arity of the state-key constructor, C(i).
// See equation D.1 in the graypaper v0.6.7
func NewBasic(i uint8) StateKey {
	var result StateKey
	result[0] = i
	return result
}

// NewService is the second arity of the state-key constructor, C(255, s).
// See equation D.1 in the graypaper v0.6.7
func NewService(s block.ServiceId) StateKey {
	n := jam.EncodeUint32(uint32(s))

	var result StateKey
	result[0] = ChapterServiceIndex
	// encoded service ID bytes go to positions 1,3,5,7
	result[1] = n[0]
	result[3] = n[1]
	result[5] = n[2]
	result[7] = n[3]
	return result
}

// NewServiceDict is the last arity of the state-key constructor, C(s, h).
// See equation D.1 in the graypaper v0.6.7
func NewServiceDict(s block.ServiceId, hashComponent []byte) StateKey {
	n := jam.EncodeUint32(uint32(s))
	hash := crypto.HashData(hashComponent)

	var result StateKey
	result[0] = n[0]
	result[1] = hash[0]
	result[2] = n[1]
	result[3] = hash[1]
	result[4] = n[2]
	result[5] = hash[2]
	result[6] = n[3]
	result[7] = hash[3]
	copy(result[8:], hash[4:])
	return result
}

// NewStorage creates a storage state key.
// ∀(s ↦ a) ∈ δ, (k ↦ v) ∈ as ∶ C(s, E4(2^32 − 1) ⌢ k)
// See equation D.2 in the graypaper v0.6.7
func NewStorage(serviceId block.ServiceId, originalKey []byte) StateKey {
	return NewServiceDict(serviceId, prefixed(HashStorageIndex, originalKey))
}

// NewPreimageLookup creates a preimage state key.
// ∀(s ↦ a) ∈ δ, (h ↦ p) ∈ ap ∶ C(s, E4(2^32 −2) ⌢ h)
func NewPreimageLookup(serviceId block.ServiceId, originalHash crypto.Hash) StateKey {
	return NewServiceDict(serviceId, prefixed(HashPreimageLookupIndex, originalHash[:]))
}

// NewPreimageMeta creates a preimage request state key.
// ∀(s ↦ a) ∈ δ, ((h,l) ↦ t) ∈ al ∶ C(s, E4(l) ⌢ h)
func NewPreimageMeta(serviceId block.ServiceId, originalHash crypto.Hash, originalLength uint32) StateKey {
	return NewServiceDict(serviceId, prefixed(originalLength, originalHash[:]))
}

func prefixed(prefix uint32, b []byte) []byte {
	out := make([]byte, 4+len(b))
	copy(out, jam.EncodeUint32(prefix))
	copy(out[4:], b)
	return out
}

// IsChapterKey checks if the given state key is a chapter key of the format: [i, 0, 0,...]
func (s StateKey) IsChapterKey() bool {
	// chapter keys are between 1 and 254
	if !(s[0] > 0 && s[0] < 255) {
		return false
	}
	for _, b := range s[1:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsServiceKey checks if the given state key is a service account key of the
// format: [255, n0, 0, n1, 0, n2, 0, n3, 0, 0,...]
func (s StateKey) IsServiceKey() bool {
	if !(s[0] == ChapterServiceIndex && s[2] == 0 && s[4] == 0 && s[6] == 0) {
		return false
	}
	for _, b := range s[8:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsPreimageLookupKey exploits the fact that a preimage key is derived from
// the hash of its own value.
func (s StateKey) IsPreimageLookupKey(preimageValue []byte) bool {
	serviceID, _ := s.ExtractServiceIDHash()
	return NewPreimageLookup(serviceID, crypto.HashData(preimageValue)) == s
}

// ExtractChapterServiceID extracts the chapter and service ID components from
// a state key of the format [i, n0, 0, n1, 0, n2, 0, n3, 0, 0,...].
func (s StateKey) ExtractChapterServiceID() (uint8, block.ServiceId) {
	n := []byte{s[1], s[3], s[5], s[7]}
	return s[0], block.ServiceId(jam.DeserializeTrivialNatural[uint32](n))
}

// ExtractServiceIDHash extracts the service ID and hash components from a
// state key of the format [n0, h0, n1, h1, n2, h2, n3, h3, h4, h5,...].
func (s StateKey) ExtractServiceIDHash() (block.ServiceId, []byte) {
	n := []byte{s[0], s[2], s[4], s[6]}

	// 31 byte state key - 4 bytes for the service ID = 27 bytes for the hash component
	hash := make([]byte, 27)
	hash[0] = s[1]
	hash[1] = s[3]
	hash[2] = s[5]
	copy(hash[3:], s[7:])

	return block.ServiceId(jam.DeserializeTrivialNatural[uint32](n)), hash
}
