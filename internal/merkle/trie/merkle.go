package trie

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
)

// KeyValue is a single trie entry.
type KeyValue struct {
	Key   statekey.StateKey
	Value []byte
}

// NodeSink receives every node produced during merklization, with its hash.
type NodeSink func(hash crypto.Hash, node Node) error

// Merklize computes M(d), the root of the trie over kvs, where i is the bit
// depth the entries are being split on (eq. D.6 v0.6.7). The result does not
// depend on the order of kvs. A nil sink only computes the root.
func Merklize(kvs []KeyValue, i int, sink NodeSink) (crypto.Hash, error) {
	if len(kvs) == 0 {
		return crypto.Hash{}, nil
	}

	if len(kvs) == 1 {
		node := EncodeLeafNode(kvs[0].Key, kvs[0].Value)
		return emit(node, sink)
	}

	var left, right []KeyValue
	for _, kv := range kvs {
		if Bit(kv.Key, i) {
			right = append(right, kv)
		} else {
			left = append(left, kv)
		}
	}

	leftHash, err := Merklize(left, i+1, sink)
	if err != nil {
		return crypto.Hash{}, err
	}
	rightHash, err := Merklize(right, i+1, sink)
	if err != nil {
		return crypto.Hash{}, err
	}
	return emit(EncodeBranchNode(leftHash, rightHash), sink)
}

// MerklizeState is M over a serialized state.
func MerklizeState(serializedState map[statekey.StateKey][]byte) crypto.Hash {
	root, _ := Merklize(ToKeyValues(serializedState), 0, nil)
	return root
}

// ToKeyValues lists the entries of a serialized state in no particular order.
func ToKeyValues(serializedState map[statekey.StateKey][]byte) []KeyValue {
	kvs := make([]KeyValue, 0, len(serializedState))
	for k, v := range serializedState {
		kvs = append(kvs, KeyValue{Key: k, Value: v})
	}
	return kvs
}

func emit(node Node, sink NodeSink) (crypto.Hash, error) {
	hash := crypto.HashData(node[:])
	if sink != nil {
		if err := sink(hash, node); err != nil {
			return crypto.Hash{}, err
		}
	}
	return hash, nil
}

// Bit returns the i-th bit of the key, most significant bit of each byte first.
func Bit(k statekey.StateKey, i int) bool {
	return k[i/8]&(1<<(7-i%8)) != 0
}
