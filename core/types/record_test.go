package types

import (
	"bytes"
	"errors"
	"testing"
)

func TestBatchRecordRoundTrip(t *testing.T) {
	batch := testGoldenBatch()
	records := []*BatchRecord{
		{
			Sequence: 1,
			Hash:     batch.Hash(),
			Time:     1_700_000_000,
			Status:   BatchStatusOK,
			Raw:      batch.EncodeBinary(),
		},
		{
			Sequence: 2,
			Hash:     batch.Hash(),
			Time:     1_700_000_001,
			Status:   BatchStatusFailed,
			Error:    "sigreg: signer group not initialized",
			Raw:      batch.EncodeBinary(),
		},
	}
	for _, rec := range records {
		blob := rec.EncodeBinary()
		got, err := DecodeBatchRecord(blob)
		if err != nil {
			t.Fatalf("seq %d: decode: %v", rec.Sequence, err)
		}
		if got.Sequence != rec.Sequence || got.Hash != rec.Hash || got.Time != rec.Time {
			t.Fatalf("seq %d: header mismatch: %+v", rec.Sequence, got)
		}
		if got.Status != rec.Status || got.Error != rec.Error {
			t.Fatalf("seq %d: status mismatch: %d %q", rec.Sequence, got.Status, got.Error)
		}
		if !bytes.Equal(got.Raw, rec.Raw) {
			t.Fatalf("seq %d: raw batch mismatch", rec.Sequence)
		}
		if got.Failed() != (rec.Status == BatchStatusFailed) {
			t.Fatalf("seq %d: Failed() = %v", rec.Sequence, got.Failed())
		}
		inner, err := got.Batch()
		if err != nil {
			t.Fatalf("seq %d: inner batch: %v", rec.Sequence, err)
		}
		if inner.Hash() != batch.Hash() {
			t.Fatalf("seq %d: inner digest mismatch", rec.Sequence)
		}
	}
}

func TestDecodeBatchRecordRejectsDamage(t *testing.T) {
	rec := &BatchRecord{
		Sequence: 7,
		Status:   BatchStatusOK,
		Raw:      []byte{0x01, 0x02},
	}
	blob := rec.EncodeBinary()

	for i := 0; i < len(blob); i++ {
		if _, err := DecodeBatchRecord(blob[:i]); err == nil {
			t.Fatalf("truncation at %d accepted", i)
		}
	}
	if _, err := DecodeBatchRecord(append(append([]byte{}, blob...), 0xff)); !errors.Is(err, ErrInvalidRecordEncoding) {
		t.Fatalf("trailing byte: got %v", err)
	}
	// Unknown status byte.
	bad := append([]byte{}, blob...)
	bad[8+32+8] = 0x00
	if _, err := DecodeBatchRecord(bad); !errors.Is(err, ErrInvalidRecordEncoding) {
		t.Fatalf("status 0: got %v", err)
	}
}
