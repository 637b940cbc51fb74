package sigreg

import (
	"bytes"
	"testing"

	"github.com/tos-network/tossig/common/hexutil"
)

func TestSplitOffsetEncoding(t *testing.T) {
	cases := []struct {
		value     uint16
		remainder byte
		quotient  byte
	}{
		{0x0000, 0x00, 0x00},
		{0x0001, 0x01, 0x00},
		{0x00ff, 0xff, 0x00},
		{0x0100, 0x00, 0x01},
		{0x0101, 0x01, 0x01},
		{0x1234, 0x34, 0x12},
		{0xffff, 0xff, 0xff},
	}
	for _, tc := range cases {
		r, q := splitU16(tc.value)
		if r != tc.remainder || q != tc.quotient {
			t.Fatalf("split 0x%04x: got (0x%02x, 0x%02x) want (0x%02x, 0x%02x)",
				tc.value, r, q, tc.remainder, tc.quotient)
		}
		if back := joinU16(r, q); back != tc.value {
			t.Fatalf("join 0x%02x 0x%02x: got 0x%04x want 0x%04x", r, q, back, tc.value)
		}
	}
}

func TestSecpOffsetsGoldenLayout(t *testing.T) {
	offsets := SecpSignatureOffsets{
		SignatureOffset:           0x1234,
		SignatureInstructionIndex: 0x01,
		AddressOffset:             0x00ab,
		AddressInstructionIndex:   0x02,
		MessageOffset:             0x0100,
		MessageSize:               0x0305,
		MessageInstructionIndex:   0x03,
	}
	const want = "0x3412" + "01" + "ab00" + "02" + "0001" + "0503" + "03"
	if got := hexutil.Encode(offsets.Encode()); got != want {
		t.Fatalf("offsets layout changed:\n got  %s\n want %s", got, want)
	}
}

func TestSecpOffsetsRoundtrip(t *testing.T) {
	want := SecpSignatureOffsets{
		SignatureOffset:           97,
		SignatureInstructionIndex: 0,
		AddressOffset:             12,
		AddressInstructionIndex:   0,
		MessageOffset:             512,
		MessageSize:               300,
		MessageInstructionIndex:   2,
	}
	wire := want.Encode()
	if len(wire) != SecpOffsetsSize {
		t.Fatalf("encoded size: got %d want %d", len(wire), SecpOffsetsSize)
	}
	got, err := DecodeSecpSignatureOffsets(wire)
	if err != nil {
		t.Fatalf("DecodeSecpSignatureOffsets: %v", err)
	}
	if got != want {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}

	// Trailing payload bytes after the descriptor are not the decoder's
	// business.
	got, err = DecodeSecpSignatureOffsets(append(wire, 0xde, 0xad, 0xbe, 0xef))
	if err != nil {
		t.Fatalf("DecodeSecpSignatureOffsets with payload: %v", err)
	}
	if got != want {
		t.Fatalf("mismatch with trailing payload: got %+v want %+v", got, want)
	}
}

func TestSecpOffsetsRejectsShort(t *testing.T) {
	for n := 0; n < SecpOffsetsSize; n++ {
		if _, err := DecodeSecpSignatureOffsets(make([]byte, n)); err != ErrMalformedOffsets {
			t.Fatalf("size %d: got %v want %v", n, err, ErrMalformedOffsets)
		}
	}
}

func FuzzDecodeSecpSignatureOffsets(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, SecpOffsetsSize))
	f.Add(SecpSignatureOffsets{
		SignatureOffset: 0x1234,
		AddressOffset:   0xab,
		MessageOffset:   0x100,
		MessageSize:     5,
	}.Encode())
	f.Fuzz(func(t *testing.T, data []byte) {
		offsets, err := DecodeSecpSignatureOffsets(data)
		if err != nil {
			return
		}
		// Decoded descriptors re-encode to the exact bytes they came from.
		if !bytes.Equal(offsets.Encode(), data[:SecpOffsetsSize]) {
			t.Fatalf("reencode mismatch: in % x out % x", data[:SecpOffsetsSize], offsets.Encode())
		}
	})
}
