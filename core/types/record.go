package types

import (
	"bytes"
	"encoding/binary"

	"github.com/tos-network/tossig/common"
)

// Batch execution status codes stored in batch records.
const (
	BatchStatusOK     uint8 = 1
	BatchStatusFailed uint8 = 2
)

// BatchRecord is the journal entry the ledger persists for every submitted
// batch, successful or not. Raw holds the full signed batch encoding so
// consumers can re-inspect the instructions that ran.
type BatchRecord struct {
	Sequence uint64
	Hash     common.Hash
	Time     uint64
	Status   uint8
	Error    string
	Raw      []byte
}

// Failed reports whether the batch was rejected.
func (r *BatchRecord) Failed() bool {
	return r.Status == BatchStatusFailed
}

// Batch decodes the raw batch captured by the record.
func (r *BatchRecord) Batch() (*Batch, error) {
	return DecodeBatch(r.Raw)
}

// EncodeBinary packs the record for storage.
func (r *BatchRecord) EncodeBinary() []byte {
	errStr := r.Error
	if len(errStr) > 0xffff {
		errStr = errStr[:0xffff]
	}
	var buf bytes.Buffer
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], r.Sequence)
	buf.Write(scratch[:])
	buf.Write(r.Hash[:])
	binary.BigEndian.PutUint64(scratch[:], r.Time)
	buf.Write(scratch[:])
	buf.WriteByte(r.Status)
	writeU16(&buf, uint16(len(errStr)))
	buf.WriteString(errStr)
	writeU32(&buf, uint32(len(r.Raw)))
	buf.Write(r.Raw)
	return buf.Bytes()
}

// DecodeBatchRecord is the inverse of EncodeBinary.
func DecodeBatchRecord(blob []byte) (*BatchRecord, error) {
	r := batchReader{buf: blob}
	seq, ok := r.take(8)
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	hash, ok := r.take(common.HashLength)
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	ts, ok := r.take(8)
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	status, ok := r.u8()
	if !ok || (status != BatchStatusOK && status != BatchStatusFailed) {
		return nil, ErrInvalidRecordEncoding
	}
	elen, ok := r.u16()
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	errStr, ok := r.take(int(elen))
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	rlen, ok := r.u32()
	if !ok {
		return nil, ErrInvalidRecordEncoding
	}
	raw, ok := r.take(int(rlen))
	if !ok || r.rest() != 0 {
		return nil, ErrInvalidRecordEncoding
	}
	rec := &BatchRecord{
		Sequence: binary.BigEndian.Uint64(seq),
		Time:     binary.BigEndian.Uint64(ts),
		Status:   status,
		Error:    string(errStr),
		Raw:      common.CopyBytes(raw),
	}
	rec.Hash.SetBytes(hash)
	return rec, nil
}
