package store

import (
	"errors"
	"sync"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
)

const DefaultHistorySize = 256

var ErrUnknownState = errors.New("no state recorded for header")

// History remembers the posterior state of the most recent blocks. Each state
// lives in the trie store, older ones are pruned once more than size blocks
// have been recorded.
type History struct {
	trie  *Trie
	size  int
	mu    sync.Mutex
	order []crypto.Hash
	roots map[crypto.Hash]crypto.Hash
}

func NewHistory(trie *Trie, size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		trie:  trie,
		size:  size,
		roots: make(map[crypto.Hash]crypto.Hash),
	}
}

// Record commits the serialized state produced by the block with the given
// header hash and returns its root.
func (h *History) Record(headerHash crypto.Hash, serialized map[statekey.StateKey][]byte) (crypto.Hash, error) {
	root, err := h.trie.MerklizeAndCommit(serialized)
	if err != nil {
		return crypto.Hash{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if previous, ok := h.roots[headerHash]; ok {
		h.roots[headerHash] = root
		return root, h.trie.Prune(previous)
	}

	h.roots[headerHash] = root
	h.order = append(h.order, headerHash)
	for len(h.order) > h.size {
		oldest := h.order[0]
		h.order = h.order[1:]
		if err := h.trie.Prune(h.roots[oldest]); err != nil {
			return crypto.Hash{}, err
		}
		delete(h.roots, oldest)
	}
	return root, nil
}

// Root returns the state root recorded for the header.
func (h *History) Root(headerHash crypto.Hash) (crypto.Hash, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	root, ok := h.roots[headerHash]
	return root, ok
}

// State rebuilds the serialized state recorded for the header.
func (h *History) State(headerHash crypto.Hash) (map[statekey.StateKey][]byte, error) {
	root, ok := h.Root(headerHash)
	if !ok {
		return nil, ErrUnknownState
	}
	return h.trie.Entries(root)
}

// Reset forgets every recorded state.
func (h *History) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, headerHash := range h.order {
		if err := h.trie.Prune(h.roots[headerHash]); err != nil {
			return err
		}
	}
	h.order = nil
	h.roots = make(map[crypto.Hash]crypto.Hash)
	return nil
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}
