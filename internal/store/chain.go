package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/db"
	"github.com/eigerco/jamtarget/pkg/db/pebble"
	"github.com/eigerco/jamtarget/pkg/log"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

var (
	ErrHeaderNotFound = errors.New("header not found")
	ErrChainClosed    = errors.New("chain store is closed")
)

// Chain keeps imported headers and the posterior state root of each, by header hash.
type Chain struct {
	db     db.KVStore
	codecs *block.Codecs
	closed atomic.Bool
}

func NewChain(db db.KVStore, codecs *block.Codecs) *Chain {
	return &Chain{db: db, codecs: codecs}
}

// PutHeader stores a header and the root of the state it produced, atomically.
func (c *Chain) PutHeader(header block.Header, stateRoot crypto.Hash) (crypto.Hash, error) {
	if c.closed.Load() {
		return crypto.Hash{}, ErrChainClosed
	}

	headerBytes, err := jam.Marshal(c.codecs.Header, header)
	if err != nil {
		return crypto.Hash{}, fmt.Errorf("marshal header: %w", err)
	}
	headerHash := crypto.HashData(headerBytes)

	batch := c.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	if err := batch.Put(makeKey(prefixHeader, headerHash[:]), headerBytes); err != nil {
		return crypto.Hash{}, fmt.Errorf("store header: %w", err)
	}
	if err := batch.Put(makeKey(prefixStateRoot, headerHash[:]), stateRoot[:]); err != nil {
		return crypto.Hash{}, fmt.Errorf("store state root: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return crypto.Hash{}, fmt.Errorf("commit batch: %w", err)
	}
	return headerHash, nil
}

// GetHeader retrieves a header by its hash
func (c *Chain) GetHeader(hash crypto.Hash) (block.Header, error) {
	bb, err := c.get(prefixHeader, hash)
	if err != nil {
		return block.Header{}, err
	}
	return jam.Unmarshal(c.codecs.Header, bb)
}

// GetStateRoot returns the posterior state root recorded for the header.
func (c *Chain) GetStateRoot(hash crypto.Hash) (crypto.Hash, error) {
	bb, err := c.get(prefixStateRoot, hash)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.Hash(bb), nil
}

// DeleteHeader forgets a header and its state root.
func (c *Chain) DeleteHeader(hash crypto.Hash) error {
	if c.closed.Load() {
		return ErrChainClosed
	}
	batch := c.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	if err := batch.Delete(makeKey(prefixHeader, hash[:])); err != nil {
		return err
	}
	if err := batch.Delete(makeKey(prefixStateRoot, hash[:])); err != nil {
		return err
	}
	return batch.Commit()
}

func (c *Chain) get(prefix byte, hash crypto.Hash) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrChainClosed
	}
	bb, err := c.db.Get(makeKey(prefix, hash[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrHeaderNotFound
		}
		return nil, fmt.Errorf("get %s: %w", prefixName(prefix), err)
	}
	return bb, nil
}

// Reset forgets every stored header and state root.
func (c *Chain) Reset() error {
	if c.closed.Load() {
		return ErrChainClosed
	}
	n, err := db.DeleteRange(c.db, []byte{prefixHeader}, []byte{prefixStateRoot + 1})
	if err != nil {
		return fmt.Errorf("reset chain: %w", err)
	}
	log.Internal.Debug().Int("records", n).Msg("chain index reset")
	return nil
}

// Close closes the chain store
func (c *Chain) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.db.Close()
}
