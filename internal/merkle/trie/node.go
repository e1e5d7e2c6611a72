package trie

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
)

const (
	// NodeSize is the size of a node in bytes (512 bits).
	NodeSize = 64

	// LeafNodeFlag indicates a leaf node.
	LeafNodeFlag byte = 0b10000000

	// NotEmbeddedLeafFlag indicates a regular leaf, whose value is held by hash.
	NotEmbeddedLeafFlag byte = 0b01000000

	// ValueSizeMask extracts the embedded value size.
	ValueSizeMask byte = 0b00111111

	EmbeddedValueMaxSize = 32
)

// Node represents a node in the binary Patricia Merkle trie (appendix D.2 v0.6.7).
type Node [NodeSize]byte

// EncodeBranchNode encodes B(l, r): a zero bit, the last 255 bits of the left
// child's hash and the full right child's hash.
func EncodeBranchNode(left, right crypto.Hash) Node {
	var node Node
	node[0] = left[0] & 0b01111111
	copy(node[1:32], left[1:])
	copy(node[32:], right[:])
	return node
}

// EncodeLeafNode encodes L(k, v). Values of up to 32 bytes are embedded with
// their length in the low 6 bits of the head byte, larger values are held by
// their hash.
func EncodeLeafNode(key statekey.StateKey, value []byte) Node {
	var node Node
	copy(node[1:32], key[:])
	if len(value) <= EmbeddedValueMaxSize {
		node[0] = LeafNodeFlag | byte(len(value))
		copy(node[32:], value)
		return node
	}
	node[0] = LeafNodeFlag | NotEmbeddedLeafFlag
	hash := crypto.HashData(value)
	copy(node[32:], hash[:])
	return node
}

// IsLeaf returns true if the node's first bit is set.
func (n Node) IsLeaf() bool {
	return n[0]&LeafNodeFlag != 0
}

func (n Node) IsBranch() bool {
	return n[0]&LeafNodeFlag == 0
}

// IsEmbeddedLeaf reports whether the node is a leaf holding its value inline.
func (n Node) IsEmbeddedLeaf() bool {
	return n.IsLeaf() && n[0]&NotEmbeddedLeafFlag == 0
}

func (n Node) GetEmbeddedValueSize() (int, error) {
	if !n.IsEmbeddedLeaf() {
		return 0, ErrNotEmbeddedLeaf
	}
	return int(n[0] & ValueSizeMask), nil
}

// GetBranchHashes retrieves both child hashes of a branch node. The left hash
// has lost its first bit, it comes back normalized (see NormalizeHash).
func (n Node) GetBranchHashes() (crypto.Hash, crypto.Hash, error) {
	if !n.IsBranch() {
		return crypto.Hash{}, crypto.Hash{}, ErrNotBranchNode
	}
	var left, right crypto.Hash
	copy(left[:], n[:32])
	copy(right[:], n[32:])
	return left, right, nil
}

func (n Node) GetLeafKey() (statekey.StateKey, error) {
	if !n.IsLeaf() {
		return statekey.StateKey{}, ErrNotLeafNode
	}
	var key statekey.StateKey
	copy(key[:], n[1:32])
	return key, nil
}

// GetLeafValue retrieves the value from an embedded-value leaf node.
func (n Node) GetLeafValue() ([]byte, error) {
	size, err := n.GetEmbeddedValueSize()
	if err != nil {
		return nil, err
	}
	value := make([]byte, size)
	copy(value, n[32:32+size])
	return value, nil
}

// GetLeafValueHash retrieves the value hash from a regular leaf node.
func (n Node) GetLeafValueHash() (crypto.Hash, error) {
	if !n.IsLeaf() {
		return crypto.Hash{}, ErrNotLeafNode
	}
	if n.IsEmbeddedLeaf() {
		return crypto.Hash{}, ErrEmbeddedLeafInsteadOfRegular
	}
	var hash crypto.Hash
	copy(hash[:], n[32:])
	return hash, nil
}

// NormalizeHash clears the first bit of a node hash, the form in which a
// left child is referenced by its parent.
func NormalizeHash(h crypto.Hash) crypto.Hash {
	h[0] &= 0b01111111
	return h
}
