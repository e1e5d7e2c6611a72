package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/merkle/trie"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/db"
	"github.com/eigerco/jamtarget/pkg/db/pebble"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Trie stores merklized tries. Nodes and out-of-line values are reference
// counted per committed root, so a root that is no longer needed can be
// pruned without touching the nodes it shares with other roots.
type Trie struct {
	store    db.KVStore
	root     crypto.Hash
	rootLock sync.RWMutex
}

func NewTrie(store db.KVStore) *Trie {
	return &Trie{store: store}
}

// MerklizeAndCommit computes the root of the serialized state and writes its
// nodes to the store.
func (s *Trie) MerklizeAndCommit(serializedState map[statekey.StateKey][]byte) (crypto.Hash, error) {
	s.rootLock.Lock()
	defer s.rootLock.Unlock()

	batch := s.store.NewBatch()
	defer batch.Close() //nolint:errcheck

	increments := make(map[string]uint64)
	kvs := trie.ToKeyValues(serializedState)
	for _, kv := range kvs {
		if len(kv.Value) <= trie.EmbeddedValueMaxSize {
			continue
		}
		key := valueKey(crypto.HashData(kv.Value))
		if err := batch.Put(key, kv.Value); err != nil {
			return crypto.Hash{}, err
		}
		increments[string(key)]++
	}

	root, err := trie.Merklize(kvs, 0, func(hash crypto.Hash, node trie.Node) error {
		key := nodeKey(hash)
		increments[string(key)]++
		return batch.Put(key, node[:])
	})
	if err != nil {
		return crypto.Hash{}, err
	}

	for key, inc := range increments {
		count, err := s.refCount([]byte(key))
		if err != nil {
			return crypto.Hash{}, err
		}
		if err := batch.Put(refCountKey([]byte(key)), jam.EncodeUint64(count+inc)); err != nil {
			return crypto.Hash{}, err
		}
	}

	if err := batch.Commit(); err != nil {
		return crypto.Hash{}, err
	}

	s.root = root
	return root, nil
}

// Prune releases one reference to every node of the trie under root.
func (s *Trie) Prune(root crypto.Hash) error {
	if root == (crypto.Hash{}) {
		return nil
	}

	s.rootLock.Lock()
	defer s.rootLock.Unlock()

	var keys [][]byte
	err := s.walk(root, func(hash crypto.Hash, node trie.Node) error {
		keys = append(keys, nodeKey(hash))
		if node.IsLeaf() && !node.IsEmbeddedLeaf() {
			valueHash, _ := node.GetLeafValueHash()
			keys = append(keys, valueKey(valueHash))
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := s.store.NewBatch()
	defer batch.Close() //nolint:errcheck

	decrements := make(map[string]uint64)
	for _, key := range keys {
		decrements[string(key)]++
	}
	for key, dec := range decrements {
		count, err := s.refCount([]byte(key))
		if err != nil {
			return err
		}
		if count <= dec {
			if err := batch.Delete([]byte(key)); err != nil {
				return err
			}
			if err := batch.Delete(refCountKey([]byte(key))); err != nil {
				return err
			}
			continue
		}
		if err := batch.Put(refCountKey([]byte(key)), jam.EncodeUint64(count-dec)); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// Get returns the node with the given hash. Left child references, which miss
// their first bit, are accepted as well.
func (s *Trie) Get(hash crypto.Hash) (trie.Node, error) {
	data, err := s.store.Get(nodeKey(hash))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return trie.Node{}, fmt.Errorf("%w: %s", trie.ErrMissingNode, hash)
		}
		return trie.Node{}, err
	}
	if len(data) != trie.NodeSize {
		return trie.Node{}, fmt.Errorf("%w: %s has %d bytes", trie.ErrMissingNode, hash, len(data))
	}
	return trie.Node(data), nil
}

// Lookup returns the value stored under key in the trie with the given root.
func (s *Trie) Lookup(root crypto.Hash, key statekey.StateKey) ([]byte, error) {
	if root == (crypto.Hash{}) {
		return nil, trie.ErrKeyNotFound
	}
	hash := root
	for depth := 0; ; depth++ {
		node, err := s.Get(hash)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf() {
			leafKey, _ := node.GetLeafKey()
			if leafKey != key {
				return nil, trie.ErrKeyNotFound
			}
			return s.leafValue(node)
		}
		left, right, _ := node.GetBranchHashes()
		if trie.Bit(key, depth) {
			hash = right
		} else {
			hash = left
		}
		if hash == (crypto.Hash{}) {
			return nil, trie.ErrKeyNotFound
		}
	}
}

// Entries rebuilds the full key value map of the trie with the given root.
func (s *Trie) Entries(root crypto.Hash) (map[statekey.StateKey][]byte, error) {
	entries := make(map[statekey.StateKey][]byte)
	if root == (crypto.Hash{}) {
		return entries, nil
	}
	err := s.walk(root, func(_ crypto.Hash, node trie.Node) error {
		if !node.IsLeaf() {
			return nil
		}
		key, _ := node.GetLeafKey()
		value, err := s.leafValue(node)
		if err != nil {
			return err
		}
		entries[key] = value
		return nil
	})
	return entries, err
}

func (s *Trie) Root() crypto.Hash {
	s.rootLock.RLock()
	defer s.rootLock.RUnlock()
	return s.root
}

func (s *Trie) walk(hash crypto.Hash, visit func(crypto.Hash, trie.Node) error) error {
	node, err := s.Get(hash)
	if err != nil {
		return err
	}
	if err := visit(hash, node); err != nil {
		return err
	}
	if node.IsLeaf() {
		return nil
	}
	left, right, _ := node.GetBranchHashes()
	for _, child := range []crypto.Hash{left, right} {
		if child == (crypto.Hash{}) {
			continue
		}
		if err := s.walk(child, visit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Trie) leafValue(node trie.Node) ([]byte, error) {
	if node.IsEmbeddedLeaf() {
		return node.GetLeafValue()
	}
	valueHash, err := node.GetLeafValueHash()
	if err != nil {
		return nil, err
	}
	return s.store.Get(valueKey(valueHash))
}

func (s *Trie) refCount(key []byte) (uint64, error) {
	bb, err := s.store.Get(refCountKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return jam.DeserializeTrivialNatural[uint64](bb), nil
}

// nodeKey stores nodes under their normalized hash, so that a branch's left
// child can be found without its first bit.
func nodeKey(hash crypto.Hash) []byte {
	h := trie.NormalizeHash(hash)
	return makeKey(prefixTrieNode, h[:])
}

func valueKey(hash crypto.Hash) []byte {
	return makeKey(prefixTrieNodeValue, hash[:])
}

func refCountKey(key []byte) []byte {
	return makeKey(prefixTrieNodeRefCount, key)
}
