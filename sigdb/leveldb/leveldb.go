// Package leveldb implements the key-value database layer based on LevelDB.
package leveldb

import (
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/metrics"
	"github.com/tos-network/tossig/sigdb"
)

const (
	// degradationWarnInterval specifies how often warning should be printed if
	// the leveldb database cannot keep up with requested writes.
	degradationWarnInterval = time.Minute

	// minCache is the minimum amount of memory in megabytes to allocate to
	// leveldb read and write caching, split half and half.
	minCache = 16

	// minHandles is the minimum number of files handles to allocate to the open
	// database files.
	minHandles = 16

	// metricsGatheringInterval specifies the interval to retrieve leveldb
	// database compaction, io and pause stats to report to the user.
	metricsGatheringInterval = 3 * time.Second
)

// Database is a persistent key-value store. Apart from basic data storage
// functionality it also supports batch writes and iterating over the keyspace
// in binary-alphabetical order.
type Database struct {
	fn string      // filename for reporting
	db *leveldb.DB // LevelDB instance

	compTimeGauge        metrics.Gauge // Total time spent in database compaction
	compReadGauge        metrics.Gauge // Total bytes read during compaction
	compWriteGauge       metrics.Gauge // Total bytes written during compaction
	writeDelayCountGauge metrics.Gauge // Write throttles due to database compaction
	writeDelayTimeGauge  metrics.Gauge // Cumulative duration of write throttles
	diskReadGauge        metrics.Gauge // Effective amount of data read
	diskWriteGauge       metrics.Gauge // Effective amount of data written
	memCompGauge         metrics.Gauge // Number of memory compactions
	level0CompGauge      metrics.Gauge // Number of table compactions in level0
	nonlevel0CompGauge   metrics.Gauge // Number of table compactions in non-level0
	seekCompGauge        metrics.Gauge // Number of table compactions caused by read opts
	openedTablesGauge    metrics.Gauge // Number of currently opened tables

	quitLock sync.Mutex      // Mutex protecting the quit channel access
	quitChan chan chan error // Quit channel to stop the metrics collection before closing the database

	log log.Logger // Contextual logger tracking the database path
}

// New returns a wrapped LevelDB object. The namespace is the prefix that the
// metrics reporting should use for surfacing internal stats.
func New(file string, cache int, handles int, namespace string, readonly bool) (*Database, error) {
	// Ensure we have some minimal caching and file guarantees.
	if cache < minCache {
		cache = minCache
	}
	if handles < minHandles {
		handles = minHandles
	}
	logger := log.New("database", file)
	logger.Info("Allocated cache and file handles", "cache", cache, "handles", handles)

	// Open the db and recover any potential corruptions.
	db, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
		ReadOnly:               readonly,
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	// Assemble the wrapper with all the registered metrics.
	ldb := &Database{
		fn:       file,
		db:       db,
		log:      logger,
		quitChan: make(chan chan error),
	}
	ldb.compTimeGauge = metrics.NewRegisteredGauge(namespace+"compact/time", nil)
	ldb.compReadGauge = metrics.NewRegisteredGauge(namespace+"compact/input", nil)
	ldb.compWriteGauge = metrics.NewRegisteredGauge(namespace+"compact/output", nil)
	ldb.writeDelayCountGauge = metrics.NewRegisteredGauge(namespace+"compact/writedelay/counter", nil)
	ldb.writeDelayTimeGauge = metrics.NewRegisteredGauge(namespace+"compact/writedelay/duration", nil)
	ldb.diskReadGauge = metrics.NewRegisteredGauge(namespace+"disk/read", nil)
	ldb.diskWriteGauge = metrics.NewRegisteredGauge(namespace+"disk/write", nil)
	ldb.memCompGauge = metrics.NewRegisteredGauge(namespace+"compact/memory", nil)
	ldb.level0CompGauge = metrics.NewRegisteredGauge(namespace+"compact/level0", nil)
	ldb.nonlevel0CompGauge = metrics.NewRegisteredGauge(namespace+"compact/nonlevel0", nil)
	ldb.seekCompGauge = metrics.NewRegisteredGauge(namespace+"compact/seek", nil)
	ldb.openedTablesGauge = metrics.NewRegisteredGauge(namespace+"tables/open", nil)

	// Start up the metrics gathering and return.
	go ldb.meter(metricsGatheringInterval)
	return ldb, nil
}

// Close stops the metrics collection, flushes any pending data to disk and
// closes all io accesses to the underlying key-value store.
func (db *Database) Close() error {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()

	if db.quitChan != nil {
		errc := make(chan error)
		db.quitChan <- errc
		if err := <-errc; err != nil {
			db.log.Error("Metrics collection failed", "err", err)
		}
		db.quitChan = nil
	}
	return db.db.Close()
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key, nil)
	if err != nil {
		return nil, err
	}
	return dat, nil
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	return db.db.Put(key, value, nil)
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	return db.db.Delete(key, nil)
}

// NewBatch creates a write-only key-value store that buffers changes to its
// host database until a final write is called.
func (db *Database) NewBatch() sigdb.Batch {
	return &batch{
		db: db.db,
		b:  new(leveldb.Batch),
	}
}

// NewBatchWithSize creates a write-only database batch with pre-allocated buffer.
func (db *Database) NewBatchWithSize(size int) sigdb.Batch {
	return &batch{
		db: db.db,
		b:  leveldb.MakeBatch(size),
	}
}

// NewIterator creates a binary-alphabetical iterator over a subset
// of database content with a particular key prefix, starting at a particular
// initial key (or after, if it does not exist).
func (db *Database) NewIterator(prefix []byte, start []byte) sigdb.Iterator {
	return db.db.NewIterator(bytesPrefixRange(prefix, start), nil)
}

// Stat returns a particular internal stat of the database.
func (db *Database) Stat(property string) (string, error) {
	if property == "" {
		property = "leveldb.stats"
	} else if !strings.HasPrefix(property, "leveldb.") {
		property = "leveldb." + property
	}
	return db.db.GetProperty(property)
}

// Compact flattens the underlying data store for the given key range. In
// essence, deleted and overwritten versions are discarded, and the data is
// rearranged to reduce the cost of operations needed to access them.
//
// A nil start is treated as a key before all keys in the data store; a nil
// limit is treated as a key after all keys in the data store. If both are nil
// then it will compact the entire data store.
func (db *Database) Compact(start []byte, limit []byte) error {
	return db.db.CompactRange(util.Range{Start: start, Limit: limit})
}

// Path returns the path to the database directory.
func (db *Database) Path() string {
	return db.fn
}

// meter periodically retrieves internal leveldb counters and reports them to
// the metrics subsystem.
func (db *Database) meter(refresh time.Duration) {
	var (
		errc chan error
		merr error

		lastWritePaused time.Time
	)
	timer := time.NewTimer(refresh)
	defer timer.Stop()

	// Keep collecting stats until the quit channel fires.
	for errc == nil && merr == nil {
		var stats leveldb.DBStats
		if err := db.db.Stats(&stats); err != nil {
			db.log.Error("Failed to read database stats", "err", err)
			merr = err
			continue
		}
		var compTime int64
		for _, d := range stats.LevelDurations {
			compTime += d.Nanoseconds()
		}
		db.compTimeGauge.Update(compTime)
		db.compReadGauge.Update(stats.LevelRead.Sum())
		db.compWriteGauge.Update(stats.LevelWrite.Sum())
		db.writeDelayCountGauge.Update(int64(stats.WriteDelayCount))
		db.writeDelayTimeGauge.Update(stats.WriteDelayDuration.Nanoseconds())
		db.diskReadGauge.Update(int64(stats.IORead))
		db.diskWriteGauge.Update(int64(stats.IOWrite))
		db.memCompGauge.Update(int64(stats.MemComp))
		db.level0CompGauge.Update(int64(stats.Level0Comp))
		db.nonlevel0CompGauge.Update(int64(stats.NonLevel0Comp))
		db.seekCompGauge.Update(int64(stats.SeekComp))
		db.openedTablesGauge.Update(int64(stats.OpenedTablesCount))

		// If a warning that db is performing compaction has been displayed, any
		// subsequent warnings will be withheld for one minute not to overwhelm
		// the user.
		if stats.WritePaused && time.Now().After(lastWritePaused.Add(degradationWarnInterval)) {
			db.log.Warn("Database compacting, degraded performance")
			lastWritePaused = time.Now()
		}

		// Sleep a bit, then repeat the stats collection.
		select {
		case errc = <-db.quitChan:
			// Quit requesting, stop hammering the database
		case <-timer.C:
			timer.Reset(refresh)
			// Timeout, gather a new set of stats
		}
	}
	if errc == nil {
		errc = <-db.quitChan
	}
	errc <- merr
}

// batch is a write-only leveldb batch that commits changes to its host
// database when Write is called. A batch cannot be used concurrently.
type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

// Put inserts the given value into the batch for later committing.
func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts the key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Write flushes any accumulated data to disk.
func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}

// Replay replays the batch contents.
func (b *batch) Replay(w sigdb.KeyValueWriter) error {
	replay := &replayer{writer: w}
	if err := b.b.Replay(replay); err != nil {
		return err
	}
	return replay.failure
}

// replayer is a small wrapper to implement the correct replay methods.
type replayer struct {
	writer  sigdb.KeyValueWriter
	failure error
}

// Put inserts the given value into the key-value data store.
func (r *replayer) Put(key, value []byte) {
	// If the replay already failed, stop executing ops
	if r.failure != nil {
		return
	}
	r.failure = r.writer.Put(key, value)
}

// Delete removes the key from the key-value data store.
func (r *replayer) Delete(key []byte) {
	// If the replay already failed, stop executing ops
	if r.failure != nil {
		return
	}
	r.failure = r.writer.Delete(key)
}

// bytesPrefixRange returns key range that satisfy
// - the given prefix, and
// - the given seek position
func bytesPrefixRange(prefix, start []byte) *util.Range {
	r := util.BytesPrefix(prefix)
	r.Start = append(r.Start, start...)
	return r
}
