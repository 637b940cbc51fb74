package sigreg

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/common/hexutil"
)

func testSignature(seed byte) [SignatureSize]byte {
	var sig [SignatureSize]byte
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}

func testAddress(seed byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = seed + byte(i)
	}
	return addr
}

func TestFrozenOperationTags(t *testing.T) {
	if TagInitSignerGroup != 0 {
		t.Fatalf("TagInitSignerGroup changed: got %d", TagInitSignerGroup)
	}
	if TagInitValidSigner != 1 {
		t.Fatalf("TagInitValidSigner changed: got %d", TagInitValidSigner)
	}
	if TagClearValidSigner != 2 {
		t.Fatalf("TagClearValidSigner changed: got %d", TagClearValidSigner)
	}
	if TagValidateSignature != 3 {
		t.Fatalf("TagValidateSignature changed: got %d", TagValidateSignature)
	}
}

func TestFrozenRecordSizes(t *testing.T) {
	if SignerGroupSize != 33 {
		t.Fatalf("SignerGroupSize changed: got %d", SignerGroupSize)
	}
	if ValidSignerSize != 53 {
		t.Fatalf("ValidSignerSize changed: got %d", ValidSignerSize)
	}
	if SecpOffsetsSize != 11 {
		t.Fatalf("SecpOffsetsSize changed: got %d", SecpOffsetsSize)
	}
	if SignatureSize != 64 {
		t.Fatalf("SignatureSize changed: got %d", SignatureSize)
	}
	if RecordVersion != 1 {
		t.Fatalf("RecordVersion changed: got %d", RecordVersion)
	}
}

func TestOperationCodecRoundtrip(t *testing.T) {
	ops := []Operation{
		InitSignerGroup{},
		InitValidSigner{Address: testAddress(0x20)},
		ClearValidSigner{},
		ValidateSignature{
			Signature:  testSignature(0x30),
			RecoveryID: 1,
			Message:    []byte("message under test"),
		},
		ValidateSignature{
			Signature: testSignature(0x40),
			Message:   []byte{},
		},
	}
	for i, op := range ops {
		wire, err := EncodeOperation(op)
		if err != nil {
			t.Fatalf("op %d: EncodeOperation: %v", i, err)
		}
		if len(wire) == 0 || wire[0] != op.Tag() {
			t.Fatalf("op %d: wire tag mismatch: % x", i, wire)
		}
		got, err := DecodeOperation(wire)
		if err != nil {
			t.Fatalf("op %d: DecodeOperation: %v", i, err)
		}
		if !reflect.DeepEqual(got, op) {
			t.Fatalf("op %d roundtrip mismatch:\n got  %#v\n want %#v", i, got, op)
		}
	}
}

func TestOperationGoldenWire(t *testing.T) {
	wire, err := EncodeOperation(InitValidSigner{Address: testAddress(0x01)})
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	const wantInit = "0x010102030405060708090a0b0c0d0e0f1011121314"
	if got := hexutil.Encode(wire); got != wantInit {
		t.Fatalf("init valid signer wire changed:\n got  %s\n want %s", got, wantInit)
	}

	wire, err = EncodeOperation(ValidateSignature{
		Signature:  testSignature(0x01),
		RecoveryID: 0x1b,
		Message:    []byte("hi"),
	})
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	const wantValidate = "0x03" +
		"0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20" +
		"2122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f40" +
		"1b" + "6869"
	if got := hexutil.Encode(wire); got != wantValidate {
		t.Fatalf("validate signature wire changed:\n got  %s\n want %s", got, wantValidate)
	}

	for _, op := range []Operation{InitSignerGroup{}, ClearValidSigner{}} {
		wire, err := EncodeOperation(op)
		if err != nil {
			t.Fatalf("EncodeOperation: %v", err)
		}
		if !bytes.Equal(wire, []byte{op.Tag()}) {
			t.Fatalf("bare operation wire changed: % x", wire)
		}
	}
}

func TestDecodeOperationRejects(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{4},
		{0xff},
		// 19 of 20 address bytes.
		append([]byte{TagInitValidSigner}, make([]byte, common.AddressLength-1)...),
		// signature + recovery id one byte short.
		append([]byte{TagValidateSignature}, make([]byte, SignatureSize)...),
	}
	for i, in := range cases {
		if _, err := DecodeOperation(in); err != ErrInvalidOperation {
			t.Fatalf("case %d: got %v want %v", i, err, ErrInvalidOperation)
		}
	}
}

func TestDecodeOperationIgnoresTrailing(t *testing.T) {
	// Fixed payloads take their leading bytes and leave the rest, matching
	// the split-and-take reads of the wire's consumers.
	op, err := DecodeOperation([]byte{TagInitSignerGroup, 0xde, 0xad})
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if _, ok := op.(InitSignerGroup); !ok {
		t.Fatalf("unexpected operation %#v", op)
	}

	addr := testAddress(0x07)
	wire := append([]byte{TagInitValidSigner}, addr[:]...)
	wire = append(wire, 0xff)
	op, err = DecodeOperation(wire)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	if got := op.(InitValidSigner).Address; got != addr {
		t.Fatalf("address mismatch: got %x want %x", got, addr)
	}
}

func TestInstructionBuilders(t *testing.T) {
	program := common.BytesToIdentity([]byte("registry"))
	group := common.BytesToIdentity([]byte("group"))
	signer := common.BytesToIdentity([]byte("signer"))
	owner := common.BytesToIdentity([]byte("owner"))
	addr := testAddress(0x11)

	ix, err := NewInitSignerGroupInstruction(program, group, owner)
	if err != nil {
		t.Fatalf("NewInitSignerGroupInstruction: %v", err)
	}
	if ix.Program != program {
		t.Fatalf("program mismatch: %v", ix.Program)
	}
	if len(ix.Accounts) != 2 ||
		ix.Accounts[0].Key != group || !ix.Accounts[0].Writable || ix.Accounts[0].Signer ||
		ix.Accounts[1].Key != owner || ix.Accounts[1].Writable || ix.Accounts[1].Signer {
		t.Fatalf("init group metas wrong: %+v", ix.Accounts)
	}
	if !bytes.Equal(ix.Data, []byte{TagInitSignerGroup}) {
		t.Fatalf("init group data wrong: % x", ix.Data)
	}

	ix, err = NewInitValidSignerInstruction(program, signer, group, owner, addr)
	if err != nil {
		t.Fatalf("NewInitValidSignerInstruction: %v", err)
	}
	if len(ix.Accounts) != 3 ||
		ix.Accounts[0].Key != signer || !ix.Accounts[0].Writable ||
		ix.Accounts[1].Key != group || ix.Accounts[1].Writable ||
		ix.Accounts[2].Key != owner || !ix.Accounts[2].Signer {
		t.Fatalf("init signer metas wrong: %+v", ix.Accounts)
	}
	if ix.Data[0] != TagInitValidSigner || !bytes.Equal(ix.Data[1:], addr[:]) {
		t.Fatalf("init signer data wrong: % x", ix.Data)
	}

	ix, err = NewClearValidSignerInstruction(program, signer, group, owner)
	if err != nil {
		t.Fatalf("NewClearValidSignerInstruction: %v", err)
	}
	if len(ix.Accounts) != 3 || !ix.Accounts[0].Writable || !ix.Accounts[2].Signer {
		t.Fatalf("clear metas wrong: %+v", ix.Accounts)
	}

	sig := testSignature(0x22)
	ix, err = NewValidateSignatureInstruction(program, signer, group, sig, 1, []byte("hello"))
	if err != nil {
		t.Fatalf("NewValidateSignatureInstruction: %v", err)
	}
	if len(ix.Accounts) != 2 ||
		ix.Accounts[0].Key != signer || ix.Accounts[0].Writable || ix.Accounts[0].Signer ||
		ix.Accounts[1].Key != group || ix.Accounts[1].Writable || ix.Accounts[1].Signer {
		t.Fatalf("validate metas wrong: %+v", ix.Accounts)
	}
	op, err := DecodeOperation(ix.Data)
	if err != nil {
		t.Fatalf("DecodeOperation: %v", err)
	}
	want := ValidateSignature{Signature: sig, RecoveryID: 1, Message: []byte("hello")}
	if !reflect.DeepEqual(op, want) {
		t.Fatalf("validate payload mismatch:\n got  %#v\n want %#v", op, want)
	}
}
