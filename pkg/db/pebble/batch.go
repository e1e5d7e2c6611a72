package pebble

import (
	"github.com/cockroachdb/pebble"

	"github.com/eigerco/jamtarget/pkg/db"
)

// Batch is a pebble write batch. It can be committed once, a batch closed
// without a commit is discarded.
type Batch struct {
	batch *pebble.Batch
	done  bool
}

// NewBatch returns a batch bound to the store. On a closed store every
// operation of the batch fails with ErrClosed.
func (p *KVStore) NewBatch() db.Batch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return closedBatch{}
	}
	return &Batch{batch: p.db.NewBatch()}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *Batch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	if err := b.batch.Commit(pebble.NoSync); err != nil {
		return err
	}
	b.done = true
	return nil
}

func (b *Batch) Close() error {
	if b.batch == nil {
		return nil
	}
	b.done = true
	batch := b.batch
	b.batch = nil
	return batch.Close()
}

type closedBatch struct{}

func (closedBatch) Put([]byte, []byte) error { return ErrClosed }
func (closedBatch) Delete([]byte) error      { return ErrClosed }
func (closedBatch) Commit() error            { return ErrClosed }
func (closedBatch) Close() error             { return nil }
