// Package sigdb defines the interfaces for the ledger's key-value stores.
package sigdb

import "io"

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	// Has retrieves if a key is present in the key-value data store.
	Has(key []byte) (bool, error)

	// Get retrieves the given key if it's present in the key-value data store.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put method of a backing data store.
type KeyValueWriter interface {
	// Put inserts the given value into the key-value data store.
	Put(key []byte, value []byte) error

	// Delete removes the key from the key-value data store.
	Delete(key []byte) error
}

// KeyValueStater wraps the Stat method of a backing data store.
type KeyValueStater interface {
	// Stat returns a particular internal stat of the database.
	Stat(property string) (string, error)
}

// Compacter wraps the Compact method of a backing data store.
type Compacter interface {
	// Compact flattens the underlying data store for the given key range. In
	// essence, deleted and overwritten versions are discarded, and the data is
	// rearranged to reduce the cost of operations needed to access them.
	//
	// A nil start is treated as a key before all keys in the data store; a nil
	// limit is treated as a key after all keys in the data store. If both are
	// nil then it will compact the entire data store.
	Compact(start []byte, limit []byte) error
}

// KeyValueStore contains all the methods required to allow handling different
// key-value data stores backing the ledger database.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	KeyValueStater
	Batcher
	Iteratee
	Compacter
	io.Closer
}

// Database is the interface the ledger persists through. It is currently an
// alias of KeyValueStore; it exists so callers do not couple to the store
// flavor they were handed.
type Database interface {
	KeyValueStore
}
