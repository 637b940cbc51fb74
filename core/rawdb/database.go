package rawdb

import (
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/sigdb"
	"github.com/tos-network/tossig/sigdb/leveldb"
	"github.com/tos-network/tossig/sigdb/memorydb"
)

// NewMemoryDatabase creates an ephemeral in-memory database.
func NewMemoryDatabase() sigdb.Database {
	return memorydb.New()
}

// NewLevelDBDatabase creates a persistent key-value database backed by
// LevelDB at file.
func NewLevelDBDatabase(file string, cache int, handles int, namespace string, readonly bool) (sigdb.Database, error) {
	db, err := leveldb.New(file, cache, handles, namespace, readonly)
	if err != nil {
		return nil, err
	}
	log.Info("Using LevelDB as the backing database", "path", file)
	return db, nil
}
