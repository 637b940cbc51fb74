package sigreg

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/core/rawdb"
	"github.com/tos-network/tossig/core/types"
)

// relayProgram stands in for the signature recovery program. It performs no
// checks of its own, so tests control the descriptor bytes completely.
type relayProgram struct{}

func (relayProgram) Run(*core.Context) error { return nil }

type processorEnv struct {
	t      *testing.T
	ledger *core.Ledger

	program   common.Identity
	recovery  common.Identity
	bystander common.Identity

	ownerKey  ed25519.PrivateKey
	owner     common.Identity
	groupKey  ed25519.PrivateKey
	group     common.Identity
	signerKey ed25519.PrivateKey
	signer    common.Identity
}

func envKey(seed byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
}

func envIdentity(key ed25519.PrivateKey) common.Identity {
	return common.BytesToIdentity(key.Public().(ed25519.PublicKey))
}

// newProcessorEnv builds a ledger with the registry processor and a relay
// recovery program registered under throwaway identities, and allocates the
// group and signer record accounts.
func newProcessorEnv(t *testing.T) *processorEnv {
	t.Helper()
	e := &processorEnv{
		t:         t,
		program:   common.BytesToIdentity([]byte("registry under test")),
		recovery:  common.BytesToIdentity([]byte("recovery under test")),
		bystander: common.BytesToIdentity([]byte("bystander under test")),
		ownerKey:  envKey(0x01),
		groupKey:  envKey(0x02),
		signerKey: envKey(0x03),
	}
	e.owner = envIdentity(e.ownerKey)
	e.group = envIdentity(e.groupKey)
	e.signer = envIdentity(e.signerKey)

	ledger, err := core.NewLedger(rawdb.NewMemoryDatabase(), core.Config{})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if err := ledger.RegisterProgram(e.program, NewProcessor(e.recovery)); err != nil {
		t.Fatalf("RegisterProgram: %v", err)
	}
	if err := ledger.RegisterProgram(e.recovery, relayProgram{}); err != nil {
		t.Fatalf("RegisterProgram: %v", err)
	}
	if err := ledger.RegisterProgram(e.bystander, relayProgram{}); err != nil {
		t.Fatalf("RegisterProgram: %v", err)
	}
	e.ledger = ledger

	e.allocate(e.groupKey, SignerGroupSize)
	e.allocate(e.signerKey, ValidSignerSize)
	return e
}

func (e *processorEnv) allocate(key ed25519.PrivateKey, size uint32) {
	e.t.Helper()
	ix := core.NewCreateAccountInstruction(envIdentity(key), e.program, size)
	rec := e.exec([]ed25519.PrivateKey{key}, ix)
	if rec.Failed() {
		e.t.Fatalf("account allocation failed: %s", rec.Error)
	}
}

func (e *processorEnv) exec(keys []ed25519.PrivateKey, ixs ...types.Instruction) *types.BatchRecord {
	e.t.Helper()
	batch := types.NewBatch(ixs...)
	for _, key := range keys {
		if err := batch.Sign(key); err != nil {
			e.t.Fatalf("Sign: %v", err)
		}
	}
	rec, err := e.ledger.ExecuteBatch(batch)
	if err != nil {
		e.t.Fatalf("ExecuteBatch: %v", err)
	}
	return rec
}

func (e *processorEnv) mustExec(keys []ed25519.PrivateKey, ixs ...types.Instruction) {
	e.t.Helper()
	if rec := e.exec(keys, ixs...); rec.Failed() {
		e.t.Fatalf("batch failed: %s", rec.Error)
	}
}

func (e *processorEnv) execFails(want error, keys []ed25519.PrivateKey, ixs ...types.Instruction) {
	e.t.Helper()
	rec := e.exec(keys, ixs...)
	if !rec.Failed() {
		e.t.Fatalf("batch succeeded, want %v", want)
	}
	if rec.Error != want.Error() {
		e.t.Fatalf("batch error: got %q want %q", rec.Error, want.Error())
	}
}

func (e *processorEnv) groupRecord() SignerGroup {
	e.t.Helper()
	acc := e.ledger.Account(e.group)
	if acc == nil {
		e.t.Fatal("group account missing")
	}
	group, err := DecodeSignerGroup(acc.Data)
	if err != nil {
		e.t.Fatalf("DecodeSignerGroup: %v", err)
	}
	return group
}

func (e *processorEnv) signerRecord() ValidSigner {
	e.t.Helper()
	acc := e.ledger.Account(e.signer)
	if acc == nil {
		e.t.Fatal("signer account missing")
	}
	signer, err := DecodeValidSigner(acc.Data)
	if err != nil {
		e.t.Fatalf("DecodeValidSigner: %v", err)
	}
	return signer
}

func (e *processorEnv) initGroupIx() types.Instruction {
	e.t.Helper()
	ix, err := NewInitSignerGroupInstruction(e.program, e.group, e.owner)
	if err != nil {
		e.t.Fatalf("NewInitSignerGroupInstruction: %v", err)
	}
	return ix
}

func (e *processorEnv) initSignerIx(owner common.Identity, addr common.Address) types.Instruction {
	e.t.Helper()
	ix, err := NewInitValidSignerInstruction(e.program, e.signer, e.group, owner, addr)
	if err != nil {
		e.t.Fatalf("NewInitValidSignerInstruction: %v", err)
	}
	return ix
}

func (e *processorEnv) clearSignerIx(owner common.Identity) types.Instruction {
	e.t.Helper()
	ix, err := NewClearValidSignerInstruction(e.program, e.signer, e.group, owner)
	if err != nil {
		e.t.Fatalf("NewClearValidSignerInstruction: %v", err)
	}
	return ix
}

func (e *processorEnv) validateIx(sig [SignatureSize]byte, recoveryID byte, msg []byte) types.Instruction {
	e.t.Helper()
	ix, err := NewValidateSignatureInstruction(e.program, e.signer, e.group, sig, recoveryID, msg)
	if err != nil {
		e.t.Fatalf("NewValidateSignatureInstruction: %v", err)
	}
	return ix
}

// packRecoveryData lays out one recovery entry the way the recovery program
// does: entry count, offsets descriptor, then address, signature, recovery
// id and message, with every index pointing at batch position ixIndex.
func packRecoveryData(addr common.Address, sig [SignatureSize]byte, recoveryID byte, msg []byte, ixIndex uint8) []byte {
	const payloadStart = 1 + SecpOffsetsSize
	offsets := SecpSignatureOffsets{
		SignatureOffset:           payloadStart + common.AddressLength,
		SignatureInstructionIndex: ixIndex,
		AddressOffset:             payloadStart,
		AddressInstructionIndex:   ixIndex,
		MessageOffset:             payloadStart + common.AddressLength + SignatureSize + 1,
		MessageSize:               uint16(len(msg)),
		MessageInstructionIndex:   ixIndex,
	}
	data := []byte{1}
	data = append(data, offsets.Encode()...)
	data = append(data, addr[:]...)
	data = append(data, sig[:]...)
	data = append(data, recoveryID)
	data = append(data, msg...)
	return data
}

func (e *processorEnv) recoveryIx(data []byte) types.Instruction {
	return types.NewInstruction(e.recovery, nil, data)
}

func TestProcessorInitSignerGroup(t *testing.T) {
	e := newProcessorEnv(t)

	e.mustExec(nil, e.initGroupIx())
	group := e.groupRecord()
	if group.Version != RecordVersion {
		t.Fatalf("version: got %d want %d", group.Version, RecordVersion)
	}
	if group.Owner != e.owner {
		t.Fatalf("owner: got %v want %v", group.Owner, e.owner)
	}

	// Second initialization is rejected and the record keeps its owner,
	// even when someone else claims the group.
	other := common.BytesToIdentity([]byte("usurper"))
	ix, err := NewInitSignerGroupInstruction(e.program, e.group, other)
	if err != nil {
		t.Fatalf("NewInitSignerGroupInstruction: %v", err)
	}
	e.execFails(ErrAlreadyInitialized, nil, ix)
	if got := e.groupRecord(); got != group {
		t.Fatalf("record changed by rejected init: %+v", got)
	}
}

func TestProcessorInitValidSigner(t *testing.T) {
	e := newProcessorEnv(t)
	addr := testAddress(0x50)

	// The group must be initialized first, whoever asks.
	e.execFails(ErrUninitializedGroup, []ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))

	e.mustExec(nil, e.initGroupIx())
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))

	signer := e.signerRecord()
	if signer.Version != RecordVersion {
		t.Fatalf("version: got %d want %d", signer.Version, RecordVersion)
	}
	if signer.Group != e.group {
		t.Fatalf("group ref: got %v want %v", signer.Group, e.group)
	}
	if signer.Address != addr {
		t.Fatalf("address: got %x want %x", signer.Address, addr)
	}

	// Re-registration of an active signer is rejected.
	e.execFails(ErrAlreadySignerInitialized, []ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, testAddress(0x60)))
	if got := e.signerRecord(); got != signer {
		t.Fatalf("record changed by rejected init: %+v", got)
	}
}

func TestProcessorInitValidSignerAuthorization(t *testing.T) {
	e := newProcessorEnv(t)
	e.mustExec(nil, e.initGroupIx())
	addr := testAddress(0x50)

	// Claimed owner differs from the group record's owner.
	strangerKey := envKey(0x77)
	stranger := envIdentity(strangerKey)
	e.execFails(ErrWrongOwner, []ed25519.PrivateKey{strangerKey}, e.initSignerIx(stranger, addr))

	// Right owner account, but without its batch signature. The builder
	// always demands the signature, so the meta is crafted by hand.
	op, err := EncodeOperation(InitValidSigner{Address: addr})
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	ix := types.NewInstruction(e.program, []types.AccountMeta{
		{Key: e.signer, Writable: true},
		{Key: e.group},
		{Key: e.owner, Signer: false},
	}, op)
	e.execFails(ErrSignatureMissing, nil, ix)

	if e.signerRecord().Initialized() {
		t.Fatal("signer initialized despite rejected authorization")
	}
}

func TestProcessorClearValidSigner(t *testing.T) {
	e := newProcessorEnv(t)
	addr := testAddress(0x50)
	e.mustExec(nil, e.initGroupIx())
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))

	// Only the group owner may clear.
	strangerKey := envKey(0x78)
	e.execFails(ErrWrongOwner, []ed25519.PrivateKey{strangerKey}, e.clearSignerIx(envIdentity(strangerKey)))

	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.clearSignerIx(e.owner))
	signer := e.signerRecord()
	if signer.Initialized() {
		t.Fatalf("signer still active after clear: %+v", signer)
	}
	// Stale bytes survive the clear; the version byte alone is authoritative.
	if signer.Group != e.group || signer.Address != addr {
		t.Fatalf("clear wiped stale fields: %+v", signer)
	}

	// Clearing an inactive signer stays authorized and idempotent.
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.clearSignerIx(e.owner))
	if e.signerRecord().Initialized() {
		t.Fatal("signer active after repeated clear")
	}

	// A cleared signer can be registered again.
	again := testAddress(0x90)
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, again))
	if got := e.signerRecord().Address; got != again {
		t.Fatalf("re-registered address: got %x want %x", got, again)
	}
}

func TestProcessorValidateSignature(t *testing.T) {
	e := newProcessorEnv(t)
	addr := testAddress(0x11)
	sig := testSignature(0xc0)
	msg := []byte("hello")

	e.mustExec(nil, e.initGroupIx())
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))

	// The recovery instruction sits at batch position 0, the validation
	// request right behind it.
	recovery := e.recoveryIx(packRecoveryData(addr, sig, 0, msg, 0))
	e.mustExec(nil, recovery, e.validateIx(sig, 0, msg))

	// Any single differing byte in the claimed triple must be caught.
	badSig := sig
	badSig[17]++
	e.execFails(ErrSignatureMismatch, nil, recovery, e.validateIx(badSig, 0, msg))

	badMsg := []byte("hellO")
	e.execFails(ErrSignatureMismatch, nil, recovery, e.validateIx(sig, 0, badMsg))

	badAddr := addr
	badAddr[3] ^= 0x80
	badRecovery := e.recoveryIx(packRecoveryData(badAddr, sig, 0, msg, 0))
	e.execFails(ErrSignatureMismatch, nil, badRecovery, e.validateIx(sig, 0, msg))

	// Message length drift counts as a mismatch too.
	e.execFails(ErrSignatureMismatch, nil, recovery, e.validateIx(sig, 0, []byte("hell")))
}

func TestProcessorValidateSignatureLifecycle(t *testing.T) {
	e := newProcessorEnv(t)
	addr := testAddress(0x11)
	sig := testSignature(0xc0)
	msg := []byte("hello")

	recovery := e.recoveryIx(packRecoveryData(addr, sig, 0, msg, 0))
	validate := e.validateIx(sig, 0, msg)

	// Never initialized.
	e.execFails(ErrUninitializedSigner, nil, recovery, validate)

	e.mustExec(nil, e.initGroupIx())
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))
	e.mustExec(nil, recovery, validate)

	// Cleared signers stop validating.
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.clearSignerIx(e.owner))
	e.execFails(ErrUninitializedSigner, nil, recovery, validate)
}

func TestProcessorValidateSignatureMalformed(t *testing.T) {
	e := newProcessorEnv(t)
	addr := testAddress(0x11)
	sig := testSignature(0xc0)
	msg := []byte("hello")

	e.mustExec(nil, e.initGroupIx())
	e.mustExec([]ed25519.PrivateKey{e.ownerKey}, e.initSignerIx(e.owner, addr))
	good := packRecoveryData(addr, sig, 0, msg, 0)

	// No instruction before the validation request.
	e.execFails(ErrMalformedOffsets, nil, e.validateIx(sig, 0, msg))

	// The preceding instruction belongs to some other program, even though
	// its data is a perfectly formed recovery record.
	foreign := types.NewInstruction(e.bystander, nil, good)
	e.execFails(ErrMalformedOffsets, nil, foreign, e.validateIx(sig, 0, msg))

	// Recovery data too short for count byte plus descriptor.
	for _, n := range []int{0, 1, SecpOffsetsSize} {
		e.execFails(ErrMalformedOffsets, nil, e.recoveryIx(good[:n]), e.validateIx(sig, 0, msg))
	}

	// Descriptor pointing past the end of the instruction data.
	notch := packRecoveryData(addr, sig, 0, msg, 0)
	e.execFails(ErrMalformedOffsets, nil, e.recoveryIx(notch[:len(notch)-1]), e.validateIx(sig, 0, msg))

	// Descriptor naming an instruction index outside the batch.
	e.execFails(ErrMalformedOffsets, nil, e.recoveryIx(packRecoveryData(addr, sig, 0, msg, 9)), e.validateIx(sig, 0, msg))
}

func TestProcessorRejectsUnknownRequests(t *testing.T) {
	e := newProcessorEnv(t)

	for i, data := range [][]byte{nil, {}, {0x09}, {TagInitValidSigner, 0x01}} {
		ix := types.NewInstruction(e.program, []types.AccountMeta{{Key: e.group, Writable: true}}, data)
		rec := e.exec(nil, ix)
		if !rec.Failed() || rec.Error != ErrInvalidOperation.Error() {
			t.Fatalf("case %d: status %d error %q", i, rec.Status, rec.Error)
		}
	}
}

func TestProcessorRejectsBrokenRecords(t *testing.T) {
	e := newProcessorEnv(t)

	// A group record allocated at the wrong size is unusable.
	oddKey := envKey(0x99)
	odd := envIdentity(oddKey)
	allocIx := core.NewCreateAccountInstruction(odd, e.program, SignerGroupSize+1)
	e.mustExec([]ed25519.PrivateKey{oddKey}, allocIx)

	ix, err := NewInitSignerGroupInstruction(e.program, odd, e.owner)
	if err != nil {
		t.Fatalf("NewInitSignerGroupInstruction: %v", err)
	}
	e.execFails(ErrInvalidRecord, nil, ix)
}
