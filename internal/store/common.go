package store

// Every record kind lives under its own one byte key prefix.
const (
	prefixHeader byte = iota + 1
	prefixStateRoot
	prefixTrieNode
	prefixTrieNodeValue
	prefixTrieNodeRefCount
)

var prefixNames = map[byte]string{
	prefixHeader:           "header",
	prefixStateRoot:        "state root",
	prefixTrieNode:         "trie node",
	prefixTrieNodeValue:    "trie value",
	prefixTrieNodeRefCount: "trie refcount",
}

func prefixName(p byte) string {
	if name, ok := prefixNames[p]; ok {
		return name
	}
	return "unknown"
}

func makeKey(prefix byte, hash []byte) []byte {
	key := make([]byte, 1+len(hash))
	key[0] = prefix
	copy(key[1:], hash)
	return key
}
