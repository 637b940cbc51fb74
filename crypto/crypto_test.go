package crypto

import (
	"bytes"
	"encoding/hex"
	"os"
	"testing"

	"github.com/tos-network/tossig/common"
)

var (
	testPrivHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddrHex = "f39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

func TestKeccak256Hash(t *testing.T) {
	msg := []byte("abc")
	exp, _ := hex.DecodeString("4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45")
	if h := Keccak256Hash(msg); !bytes.Equal(h[:], exp) {
		t.Fatalf("hash mismatch: want %x, got %x", exp, h)
	}
}

func TestKeccak256Empty(t *testing.T) {
	exp, _ := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if h := Keccak256(nil); !bytes.Equal(h, exp) {
		t.Fatalf("empty hash mismatch: want %x, got %x", exp, h)
	}
}

func TestPubkeyToAddress(t *testing.T) {
	key, err := HexToECDSA(testPrivHex)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}
	addr := PubkeyToAddress(key.PublicKey)
	if addr != common.HexToAddress(testAddrHex) {
		t.Fatalf("address mismatch: want %s, got %s", testAddrHex, addr.Hex())
	}
}

func TestSignRecover(t *testing.T) {
	key, _ := HexToECDSA(testPrivHex)
	addr := common.HexToAddress(testAddrHex)

	msg := Keccak256([]byte("foo"))
	sig, err := Sign(msg, key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length: want %d, got %d", SignatureLength, len(sig))
	}
	if v := sig[RecoveryIDOffset]; v != 0 && v != 1 {
		t.Fatalf("recovery id out of range: %d", v)
	}
	pub, err := SigToPub(msg, sig)
	if err != nil {
		t.Fatalf("SigToPub error: %v", err)
	}
	if recovered := PubkeyToAddress(*pub); recovered != addr {
		t.Fatalf("recovered address mismatch: want %s, got %s", addr.Hex(), recovered.Hex())
	}
}

func TestRecoverRejectsCorruptedSignature(t *testing.T) {
	key, _ := HexToECDSA(testPrivHex)
	msg := Keccak256([]byte("foo"))
	sig, _ := Sign(msg, key)

	// Wrong length.
	if _, err := SigToPub(msg, sig[:64]); err == nil {
		t.Fatal("expected error for truncated signature")
	}
	// Recovery id out of range.
	bad := append([]byte{}, sig...)
	bad[RecoveryIDOffset] = 200
	if _, err := SigToPub(msg, bad); err == nil {
		t.Fatal("expected error for invalid recovery id")
	}
}

func TestSignWithDifferentMessageRecoversOtherKey(t *testing.T) {
	key, _ := HexToECDSA(testPrivHex)
	addr := common.HexToAddress(testAddrHex)

	sig, _ := Sign(Keccak256([]byte("hello")), key)
	pub, err := SigToPub(Keccak256([]byte("hellO")), sig)
	if err != nil {
		// Some corrupted digests fail recovery outright; that is fine too.
		return
	}
	if recovered := PubkeyToAddress(*pub); recovered == addr {
		t.Fatal("signature over different message recovered the signer address")
	}
}

func TestLoadSaveECDSA(t *testing.T) {
	f, err := os.CreateTemp("", "saveecdsa_test.*.txt")
	if err != nil {
		t.Fatal(err)
	}
	file := f.Name()
	f.Close()
	defer os.Remove(file)

	key, _ := HexToECDSA(testPrivHex)
	if err := SaveECDSA(file, key); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadECDSA(file)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.D.Cmp(key.D) != 0 {
		t.Fatal("loaded key does not match saved key")
	}
}

func TestLoadECDSATrailingJunk(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{input: testPrivHex},
		{input: testPrivHex + "\n"},
		{input: testPrivHex + "\r\n"},
		{input: testPrivHex + "\n\n\n", err: "key file too long, want 64 hex characters"},
		{input: testPrivHex + "x", err: `invalid character 'x' at end of key file`},
		{input: testPrivHex[:60], err: "key file too short, want 64 hex characters"},
	}
	for _, test := range tests {
		f, err := os.CreateTemp("", "loadecdsa_test.*.txt")
		if err != nil {
			t.Fatal(err)
		}
		filename := f.Name()
		f.WriteString(test.input)
		f.Close()

		_, err = LoadECDSA(filename)
		switch {
		case err != nil && test.err == "":
			t.Errorf("unexpected error for input %q:\n  %v", test.input, err)
		case err != nil && err.Error() != test.err:
			t.Errorf("wrong error for input %q:\n  %v", test.input, err)
		case err == nil && test.err != "":
			t.Errorf("LoadECDSA did not return error for input %q", test.input)
		}
		os.Remove(filename)
	}
}
