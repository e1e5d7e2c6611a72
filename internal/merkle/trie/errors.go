package trie

import "errors"

var (
	ErrNotLeafNode                  = errors.New("not a leaf node")
	ErrNotBranchNode                = errors.New("not a branch node")
	ErrNotEmbeddedLeaf              = errors.New("not an embedded value leaf")
	ErrEmbeddedLeafInsteadOfRegular = errors.New("embedded value leaf where a regular leaf was expected")
	ErrKeyNotFound                  = errors.New("key not found in trie")
	ErrMissingNode                  = errors.New("trie node missing from store")
)
