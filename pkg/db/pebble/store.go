// Package pebble implements db.KVStore on cockroachdb/pebble opened over an
// in-memory filesystem, so state never touches the disk.
package pebble

import (
	"errors"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/jamtarget/pkg/db"
)

const (
	cacheSize    = 16 << 20
	memTableSize = 16 << 20
)

type KVStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

var _ db.KVStore = (*KVStore)(nil)

func NewKVStore() (*KVStore, error) {
	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	pdb, err := pebble.Open("jam", &pebble.Options{
		FS:           vfs.NewMem(),
		Cache:        cache,
		MemTableSize: memTableSize,
	})
	if err != nil {
		return nil, err
	}
	return &KVStore{db: pdb}, nil
}

// Get returns a copy of the stored value, or ErrNotFound.
func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck
	return slices.Clone(value), nil
}

func (p *KVStore) Put(key, value []byte) error {
	return p.write(func(pdb *pebble.DB) error { return pdb.Set(key, value, pebble.NoSync) })
}

func (p *KVStore) Delete(key []byte) error {
	return p.write(func(pdb *pebble.DB) error { return pdb.Delete(key, pebble.NoSync) })
}

func (p *KVStore) write(fn func(*pebble.DB) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return fn(p.db)
}

// Close is idempotent.
func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
