// Package db is the key value storage behind the trie node store and the
// chain index.
package db

import "fmt"

type Reader interface {
	Get(key []byte) ([]byte, error)
	// NewIterator iterates keys in [start, end) in ascending order. A nil
	// bound leaves that side open.
	NewIterator(start, end []byte) (Iterator, error)
}

type Writer interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

type KVStore interface {
	Reader
	Writer
	NewBatch() Batch
	Close() error
}

// Batch collects writes that are applied atomically on Commit.
type Batch interface {
	Writer
	Commit() error
	Close() error
}

// Iterator must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}

// DeleteRange removes every key in [start, end) in one batch and reports how
// many were removed.
func DeleteRange(store KVStore, start, end []byte) (n int, err error) {
	it, err := store.NewIterator(start, end)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()

	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck

	for it.Next() {
		if err := batch.Delete(it.Key()); err != nil {
			return 0, fmt.Errorf("delete %x: %w", it.Key(), err)
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, batch.Commit()
}
