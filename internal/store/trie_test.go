package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/merkle/trie"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/db/pebble"
)

func testState() map[statekey.StateKey][]byte {
	return map[statekey.StateKey][]byte{
		statekey.NewBasic(1):                         []byte("small"),
		statekey.NewBasic(2):                         bytes.Repeat([]byte{2}, 100),
		statekey.NewService(7):                       bytes.Repeat([]byte{3}, 89),
		statekey.NewStorage(7, []byte("key")):        []byte("value"),
		statekey.NewStorage(7, []byte("big")):        bytes.Repeat([]byte{2}, 100),
		statekey.NewPreimageLookup(7, crypto.Hash{}): {},
	}
}

func newTestTrie(t *testing.T) *Trie {
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewTrie(kv)
}

func TestMerklizeAndCommit(t *testing.T) {
	db := newTestTrie(t)

	serialized := testState()
	root, err := db.MerklizeAndCommit(serialized)
	require.NoError(t, err)
	assert.Equal(t, trie.MerklizeState(serialized), root)
	assert.Equal(t, root, db.Root())

	node, err := db.Get(root)
	require.NoError(t, err)
	assert.True(t, node.IsBranch())

	for k, v := range serialized {
		got, err := db.Lookup(root, k)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err = db.Lookup(root, statekey.NewBasic(9))
	assert.ErrorIs(t, err, trie.ErrKeyNotFound)

	entries, err := db.Entries(root)
	require.NoError(t, err)
	assert.Equal(t, serialized, entries)
}

func TestEmptyTrie(t *testing.T) {
	db := newTestTrie(t)

	root, err := db.MerklizeAndCommit(map[statekey.StateKey][]byte{})
	require.NoError(t, err)
	assert.Equal(t, crypto.Hash{}, root)

	entries, err := db.Entries(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, db.Prune(root))
}

func TestPruneKeepsSharedNodes(t *testing.T) {
	db := newTestTrie(t)

	first := testState()
	root1, err := db.MerklizeAndCommit(first)
	require.NoError(t, err)

	second := testState()
	second[statekey.NewBasic(3)] = []byte("new")
	root2, err := db.MerklizeAndCommit(second)
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)

	require.NoError(t, db.Prune(root1))

	_, err = db.Get(root1)
	assert.ErrorIs(t, err, trie.ErrMissingNode)

	entries, err := db.Entries(root2)
	require.NoError(t, err)
	assert.Equal(t, second, entries)

	require.NoError(t, db.Prune(root2))
	_, err = db.Lookup(root2, statekey.NewBasic(1))
	assert.ErrorIs(t, err, trie.ErrMissingNode)
}

func TestCommitSameStateTwice(t *testing.T) {
	db := newTestTrie(t)

	root, err := db.MerklizeAndCommit(testState())
	require.NoError(t, err)
	again, err := db.MerklizeAndCommit(testState())
	require.NoError(t, err)
	assert.Equal(t, root, again)

	// one prune per commit
	require.NoError(t, db.Prune(root))
	entries, err := db.Entries(root)
	require.NoError(t, err)
	assert.Equal(t, testState(), entries)
}
