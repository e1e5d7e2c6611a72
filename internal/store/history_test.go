package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/merkle/trie"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
)

func TestHistoryRecordAndState(t *testing.T) {
	h := NewHistory(newTestTrie(t), 2)

	root, err := h.Record(crypto.Hash{1}, testState())
	require.NoError(t, err)
	assert.Equal(t, trie.MerklizeState(testState()), root)

	got, ok := h.Root(crypto.Hash{1})
	require.True(t, ok)
	assert.Equal(t, root, got)

	entries, err := h.State(crypto.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, testState(), entries)

	_, err = h.State(crypto.Hash{2})
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestHistoryPrunesOldest(t *testing.T) {
	tr := newTestTrie(t)
	h := NewHistory(tr, 2)

	var roots []crypto.Hash
	for i := byte(1); i <= 3; i++ {
		s := testState()
		s[statekey.NewBasic(200)] = []byte{i}
		root, err := h.Record(crypto.Hash{i}, s)
		require.NoError(t, err)
		roots = append(roots, root)
	}

	assert.Equal(t, 2, h.Len())
	_, ok := h.Root(crypto.Hash{1})
	assert.False(t, ok)
	_, err := tr.Get(roots[0])
	assert.ErrorIs(t, err, trie.ErrMissingNode)

	entries, err := h.State(crypto.Hash{3})
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, entries[statekey.NewBasic(200)])
}

func TestHistoryReset(t *testing.T) {
	tr := newTestTrie(t)
	h := NewHistory(tr, 0)

	root, err := h.Record(crypto.Hash{1}, testState())
	require.NoError(t, err)
	require.NoError(t, h.Reset())

	assert.Equal(t, 0, h.Len())
	_, err = tr.Get(root)
	assert.ErrorIs(t, err, trie.ErrMissingNode)
}
