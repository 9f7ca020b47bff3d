// Package kv defines the minimal key/value storage capability that the
// ceremony module and the balance ledger are built on. It is intentionally
// small: callers that need scans implement them with Iterator, callers that
// only need point lookups never have to depend on an iterator at all.
package kv

// KV is the storage capability required by pkg/ceremonystore and
// pkg/ledger. A nil value returned from Get means "absent", matching the
// store's 1-based "0 = absent" indexing convention throughout the ceremony
// module.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterator returns an ascending iterator over all keys in [start, end).
	// A nil end means "no upper bound".
	Iterator(start, end []byte) (Iterator, error)
}

// Iterator walks a key range in ascending order. Callers must call Close
// when done.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}
