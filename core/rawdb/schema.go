package rawdb

import (
	"encoding/binary"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/metrics"
)

// The fields below define the low level database schema prefixing.
var (
	// headBatchKey tracks the sequence number of the latest executed batch.
	headBatchKey = []byte("HeadBatch")

	// accountPrefix + identity -> account record
	accountPrefix = []byte("a")

	// batchRecordPrefix + sequence (uint64 big endian) -> snappy(batch record)
	batchRecordPrefix = []byte("b")

	accountUpdateCounter = metrics.NewRegisteredCounter("db/account/updates", nil)
	batchRecordCounter   = metrics.NewRegisteredCounter("db/record/writes", nil)
)

// accountKey = accountPrefix + identity
func accountKey(id common.Identity) []byte {
	return append(accountPrefix, id.Bytes()...)
}

// batchRecordKey = batchRecordPrefix + seq (uint64 big endian)
func batchRecordKey(seq uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, seq)
	return append(batchRecordPrefix, enc...)
}
