package sigreg

import (
	"reflect"
	"testing"
)

func mustEncodeFuzzOperation(op Operation) []byte {
	wire, err := EncodeOperation(op)
	if err != nil {
		panic(err)
	}
	return wire
}

func FuzzDecodeOperation(f *testing.F) {
	f.Add(mustEncodeFuzzOperation(InitSignerGroup{}))
	f.Add(mustEncodeFuzzOperation(InitValidSigner{Address: testAddress(0x10)}))
	f.Add(mustEncodeFuzzOperation(ClearValidSigner{}))
	f.Add(mustEncodeFuzzOperation(ValidateSignature{
		Signature:  testSignature(0x20),
		RecoveryID: 1,
		Message:    []byte("fuzz seed message"),
	}))
	f.Add([]byte{})
	f.Add([]byte{0xff, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		op, err := DecodeOperation(data)
		if err != nil {
			if err != ErrInvalidOperation {
				t.Fatalf("unexpected decode error %v", err)
			}
			return
		}
		// Whatever decodes must re-encode and decode back to itself, even
		// when the input carried trailing junk the decoder dropped.
		wire, err := EncodeOperation(op)
		if err != nil {
			t.Fatalf("reencode failed: %v", err)
		}
		if wire[0] != data[0] {
			t.Fatalf("tag changed: in %#x out %#x", data[0], wire[0])
		}
		back, err := DecodeOperation(wire)
		if err != nil {
			t.Fatalf("redecode failed: %v", err)
		}
		if !reflect.DeepEqual(back, op) {
			t.Fatalf("roundtrip drift:\n first  %#v\n second %#v", op, back)
		}
	})
}
