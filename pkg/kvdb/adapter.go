// Copyright 2025 Certen Protocol
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to implement kv.KV for the ceremony
// registry store and balance ledger.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"

	"github.com/humanproof-network/ceremonies/pkg/kv"
)

// Adapter wraps a CometBFT dbm.DB and exposes the kv.KV interface. This
// allows the ceremony registry store and balance ledger to use CometBFT's
// persistent storage directly, without knowing which backend (goleveldb,
// badger, memdb, …) is configured.
type Adapter struct {
	db dbm.DB
}

// NewAdapter creates a new Adapter for the given underlying DB.
func NewAdapter(db dbm.DB) *Adapter {
	return &Adapter{db: db}
}

// Get implements kv.KV.Get
func (a *Adapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}

	// CometBFT DB returns (val, error)
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	// v may be nil if key not found – that's fine, the ceremony store treats
	// nil as "not present".
	return v, nil
}

// Set implements kv.KV.Set
func (a *Adapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}

	// SetSync writes and flushes each value at once; nothing is buffered
	// until commit
	return a.db.SetSync(key, value)
}

// Delete implements kv.KV.Delete
func (a *Adapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.DeleteSync(key)
}

// Iterator implements kv.KV.Iterator
func (a *Adapter) Iterator(start, end []byte) (kv.Iterator, error) {
	if a.db == nil {
		return &emptyIterator{}, nil
	}
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return &iteratorAdapter{it: it}, nil
}

type iteratorAdapter struct {
	it dbm.Iterator
}

func (i *iteratorAdapter) Valid() bool   { return i.it.Valid() }
func (i *iteratorAdapter) Next()         { i.it.Next() }
func (i *iteratorAdapter) Key() []byte   { return i.it.Key() }
func (i *iteratorAdapter) Value() []byte { return i.it.Value() }
func (i *iteratorAdapter) Close() error  { return i.it.Close() }

type emptyIterator struct{}

func (emptyIterator) Valid() bool   { return false }
func (emptyIterator) Next()         {}
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }
func (emptyIterator) Close() error  { return nil }
