package core

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
)

func TestNewCreateAccountInstruction(t *testing.T) {
	newAccount := common.BytesToIdentity([]byte("fresh"))
	owner := common.BytesToIdentity([]byte("owner"))
	ix := NewCreateAccountInstruction(newAccount, owner, 0x01020304)

	if ix.Program != params.SystemProgram {
		t.Fatalf("program: have %v, want %v", ix.Program, params.SystemProgram)
	}
	if len(ix.Accounts) != 1 || ix.Accounts[0].Key != newAccount || !ix.Accounts[0].Signer || !ix.Accounts[0].Writable {
		t.Fatalf("account metas wrong: %+v", ix.Accounts)
	}
	want := append([]byte{sysCreateAccount}, owner.Bytes()...)
	want = append(want, 0x01, 0x02, 0x03, 0x04)
	if !bytes.Equal(ix.Data, want) {
		t.Fatalf("data mismatch:\nhave %x\nwant %x", ix.Data, want)
	}
}

func TestSystemCreateAccount(t *testing.T) {
	l := newTestLedger(t)
	key := testKey(7)
	id := keyIdentity(key)

	ix := NewCreateAccountInstruction(id, opsProgramID, 16)
	rec, err := l.ExecuteBatch(signedBatch(t, []ed25519.PrivateKey{key}, ix))
	if err != nil {
		t.Fatalf("ExecuteBatch returned host error: %v", err)
	}
	if rec.Failed() {
		t.Fatalf("create failed: %s", rec.Error)
	}
	acc := l.Account(id)
	if acc == nil {
		t.Fatal("created account missing")
	}
	if acc.Owner != opsProgramID {
		t.Fatalf("owner: have %v, want %v", acc.Owner, opsProgramID)
	}
	if !bytes.Equal(acc.Data, make([]byte, 16)) {
		t.Fatalf("data not zero-filled: %x", acc.Data)
	}
}

func TestSystemCreateRequiresSigner(t *testing.T) {
	l := newTestLedger(t)
	id := common.BytesToIdentity([]byte("unsigned"))

	// Without the signer flag no signature is demanded, so the batch reaches
	// the program and fails there.
	ix := types.NewInstruction(params.SystemProgram, []types.AccountMeta{
		{Key: id, Signer: false, Writable: true},
	}, NewCreateAccountInstruction(id, opsProgramID, 4).Data)
	rec, err := l.ExecuteBatch(signedBatch(t, nil, ix))
	if err != nil {
		t.Fatalf("ExecuteBatch returned host error: %v", err)
	}
	if !rec.Failed() || rec.Error != ErrCreateRequiresSigner.Error() {
		t.Fatalf("record mismatch: status %d, error %q", rec.Status, rec.Error)
	}
	if acc := l.Account(id); acc != nil {
		t.Fatalf("account created without signature: %+v", acc)
	}
}

func TestSystemRejectsMalformedInstruction(t *testing.T) {
	l := newTestLedger(t)
	key := testKey(7)
	id := keyIdentity(key)
	meta := []types.AccountMeta{{Key: id, Signer: true, Writable: true}}

	cases := [][]byte{
		nil,
		{},
		{0xff},
		{sysCreateAccount},
		NewCreateAccountInstruction(id, opsProgramID, 4).Data[:createAccountDataSize-1],
		append(NewCreateAccountInstruction(id, opsProgramID, 4).Data, 0x00),
	}
	for i, data := range cases {
		ix := types.NewInstruction(params.SystemProgram, meta, data)
		rec, err := l.ExecuteBatch(signedBatch(t, []ed25519.PrivateKey{key}, ix))
		if err != nil {
			t.Fatalf("case %d: host error: %v", i, err)
		}
		if !rec.Failed() || rec.Error != ErrInvalidSystemInstruction.Error() {
			t.Fatalf("case %d: status %d, error %q", i, rec.Status, rec.Error)
		}
	}
	// Duplicate creation fails once the account exists.
	createOpsAccount(t, l, key, 4)
	ix := NewCreateAccountInstruction(id, opsProgramID, 4)
	rec, err := l.ExecuteBatch(signedBatch(t, []ed25519.PrivateKey{key}, ix))
	if err != nil {
		t.Fatalf("ExecuteBatch returned host error: %v", err)
	}
	if !rec.Failed() || rec.Error != ErrAccountExists.Error() {
		t.Fatalf("recreate: status %d, error %q", rec.Status, rec.Error)
	}
}
