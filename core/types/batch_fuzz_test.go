package types

import (
	"bytes"
	"testing"
)

func FuzzDecodeBatch(f *testing.F) {
	signed := testGoldenBatch()
	if err := signed.Sign(testBatchKey(0x11)); err != nil {
		f.Fatal(err)
	}
	f.Add(testGoldenBatch().EncodeBinary())
	f.Add(signed.EncodeBinary())
	f.Add([]byte("TOSSIGBATCH1"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > 1<<17 {
			return
		}
		batch, err := DecodeBatch(input)
		if err != nil {
			return
		}
		// Anything that decodes must pass the structural limits enforced
		// during decoding and re-encode to the identical bytes.
		if err := batch.SanityCheck(); err != nil && err != ErrDuplicateAccount {
			t.Fatalf("decoded batch fails sanity check: %v", err)
		}
		if !bytes.Equal(batch.EncodeBinary(), input) {
			t.Fatalf("decode/encode not bijective for %x", input)
		}
	})
}

func FuzzDecodeBatchRecord(f *testing.F) {
	rec := &BatchRecord{
		Sequence: 3,
		Time:     1_700_000_000,
		Status:   BatchStatusFailed,
		Error:    "boom",
		Raw:      testGoldenBatch().EncodeBinary(),
	}
	f.Add(rec.EncodeBinary())
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > 1<<17 {
			return
		}
		decoded, err := DecodeBatchRecord(input)
		if err != nil {
			return
		}
		if !bytes.Equal(decoded.EncodeBinary(), input) {
			t.Fatalf("decode/encode not bijective for %x", input)
		}
	})
}
