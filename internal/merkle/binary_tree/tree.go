package binary_tree

import (
	"github.com/eigerco/jamtarget/internal/crypto"
)

// ComputeWellBalancedRoot is M_B, the root of a well-balanced binary Merkle
// tree (eq. E.3 v0.6.7):
//
//	M_B(v, H) = H(v0)    if |v| = 1
//	            N(v, H)  otherwise
//
// Suitable for data not much greater than 32 octets in length as it avoids
// hashing each item in the sequence.
func ComputeWellBalancedRoot(blobs [][]byte, hashFunc func([]byte) crypto.Hash) crypto.Hash {
	if len(blobs) == 1 {
		return hashFunc(blobs[0])
	}
	return crypto.Hash(ComputeNode(blobs, hashFunc))
}

// ComputeNode is N (eq. E.1 v0.6.7):
//
//	N(v, H) = H0                                                  if |v| = 0
//	          v0                                                  if |v| = 1
//	          H($node ⌢ N(v...⌈|v|/2⌉, H) ⌢ N(v⌈|v|/2⌉..., H))  otherwise
//
// A single blob is returned as is, it is hashed by its parent.
func ComputeNode(blobs [][]byte, hashFunc func([]byte) crypto.Hash) []byte {
	switch len(blobs) {
	case 0:
		return make([]byte, crypto.HashSize)
	case 1:
		return blobs[0]
	}

	mid := (len(blobs) + 1) / 2
	left := ComputeNode(blobs[:mid], hashFunc)
	right := ComputeNode(blobs[mid:], hashFunc)

	combined := make([]byte, 0, 4+len(left)+len(right))
	combined = append(combined, "node"...)
	combined = append(combined, left...)
	combined = append(combined, right...)
	h := hashFunc(combined)
	return h[:]
}
