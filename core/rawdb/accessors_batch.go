package rawdb

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/log"
	"github.com/tos-network/tossig/sigdb"
)

// ReadHeadBatchSequence retrieves the sequence number of the latest executed
// batch. The second return is false when no batch has ever been recorded.
func ReadHeadBatchSequence(db sigdb.KeyValueReader) (uint64, bool) {
	data, _ := db.Get(headBatchKey)
	if len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// WriteHeadBatchSequence stores the head batch sequence cursor.
func WriteHeadBatchSequence(db sigdb.KeyValueWriter, seq uint64) {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], seq)
	if err := db.Put(headBatchKey, data[:]); err != nil {
		log.Crit("Failed to store head batch sequence", "err", err)
	}
}

// ReadBatchRecord retrieves the execution record of batch seq, or nil when
// absent.
func ReadBatchRecord(db sigdb.KeyValueReader, seq uint64) *types.BatchRecord {
	blob, _ := db.Get(batchRecordKey(seq))
	if len(blob) == 0 {
		return nil
	}
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		log.Error("Invalid batch record compression", "seq", seq, "err", err)
		return nil
	}
	rec, err := types.DecodeBatchRecord(data)
	if err != nil {
		log.Error("Invalid batch record", "seq", seq, "err", err)
		return nil
	}
	return rec
}

// WriteBatchRecord stores a batch execution record snappy-compressed.
func WriteBatchRecord(db sigdb.KeyValueWriter, rec *types.BatchRecord) {
	blob := snappy.Encode(nil, rec.EncodeBinary())
	if err := db.Put(batchRecordKey(rec.Sequence), blob); err != nil {
		log.Crit("Failed to store batch record", "err", err)
	}
	batchRecordCounter.Inc(1)
}

// DeleteBatchRecord removes the execution record of batch seq.
func DeleteBatchRecord(db sigdb.KeyValueWriter, seq uint64) {
	if err := db.Delete(batchRecordKey(seq)); err != nil {
		log.Crit("Failed to delete batch record", "err", err)
	}
}
