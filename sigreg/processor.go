package sigreg

import (
	"bytes"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/metrics"
)

var validatedSignatureCounter = metrics.NewRegisteredCounter("sigreg/validated", nil)

// Account positions of the registry instructions. Builders and processor
// agree on these; records are always addressed by name through them, never
// by iterating the meta list.
const (
	// InitSignerGroup: group record, then the assigned owner.
	groupAccount      = 0
	groupOwnerAccount = 1

	// InitValidSigner and ClearValidSigner: signer record, its group record,
	// then the claimed owner.
	signerAccount       = 0
	signerGroupAccount  = 1
	claimedOwnerAccount = 2

	// ValidateSignature reuses signerAccount and signerGroupAccount.
)

// Processor is the signer registry state machine. It trusts the enclosing
// host for batch atomicity, signature verification and exclusive record
// access, and it trusts the configured recovery program to have actually
// recovered the address its instruction carries.
type Processor struct {
	recovery common.Identity
}

// NewProcessor returns a processor recognizing recoveryProgram as the
// signature recovery co-processor during signature validation.
func NewProcessor(recoveryProgram common.Identity) *Processor {
	return &Processor{recovery: recoveryProgram}
}

// Run decodes and applies one registry request. Any error aborts the
// enclosing batch; records are only written after every guard has passed.
func (p *Processor) Run(ctx *core.Context) error {
	op, err := DecodeOperation(ctx.Data())
	if err != nil {
		return err
	}
	switch op := op.(type) {
	case InitSignerGroup:
		return p.initSignerGroup(ctx)
	case InitValidSigner:
		return p.initValidSigner(ctx, op)
	case ClearValidSigner:
		return p.clearValidSigner(ctx)
	case ValidateSignature:
		return p.validateSignature(ctx, op)
	default:
		return ErrInvalidOperation
	}
}

// initSignerGroup turns an allocated, zeroed group record into an initialized
// one owned by the account in the owner position. The owner is assigned, not
// authenticated; whoever controls record allocation controls the assignment.
func (p *Processor) initSignerGroup(ctx *core.Context) error {
	group, err := loadSignerGroup(ctx, groupAccount)
	if err != nil {
		return err
	}
	if group.Initialized() {
		return ErrAlreadyInitialized
	}
	owner, err := ctx.AccountKey(groupOwnerAccount)
	if err != nil {
		return err
	}
	group.Version = RecordVersion
	group.Owner = owner
	return storeSignerGroup(ctx, groupAccount, group)
}

// initValidSigner registers op.Address under the signer's group. Guard order
// is fixed: uninitialized group, then repeated initialization, then owner
// mismatch, then missing owner signature.
func (p *Processor) initValidSigner(ctx *core.Context, op InitValidSigner) error {
	group, err := loadSignerGroup(ctx, signerGroupAccount)
	if err != nil {
		return err
	}
	signer, err := loadValidSigner(ctx, signerAccount)
	if err != nil {
		return err
	}
	if !group.Initialized() {
		return ErrUninitializedGroup
	}
	if signer.Initialized() {
		return ErrAlreadySignerInitialized
	}
	if err := p.checkOwner(ctx, group); err != nil {
		return err
	}
	groupKey, err := ctx.AccountKey(signerGroupAccount)
	if err != nil {
		return err
	}
	signer.Version = RecordVersion
	signer.Group = groupKey
	signer.Address = op.Address
	return storeValidSigner(ctx, signerAccount, signer)
}

// clearValidSigner resets the signer's version to 0. The stale group and
// address bytes are left in place; version alone decides validity. Clearing
// an uninitialized signer is a no-op that still demands owner authorization.
func (p *Processor) clearValidSigner(ctx *core.Context) error {
	group, err := loadSignerGroup(ctx, signerGroupAccount)
	if err != nil {
		return err
	}
	signer, err := loadValidSigner(ctx, signerAccount)
	if err != nil {
		return err
	}
	if !group.Initialized() {
		return ErrUninitializedGroup
	}
	if err := p.checkOwner(ctx, group); err != nil {
		return err
	}
	signer.Version = 0
	return storeValidSigner(ctx, signerAccount, signer)
}

// checkOwner verifies the claimed owner account against the group record and
// demands its batch signature, in that order.
func (p *Processor) checkOwner(ctx *core.Context, group SignerGroup) error {
	owner, err := ctx.AccountKey(claimedOwnerAccount)
	if err != nil {
		return err
	}
	if owner != group.Owner {
		return ErrWrongOwner
	}
	signed, err := ctx.IsSigner(claimedOwnerAccount)
	if err != nil {
		return err
	}
	if !signed {
		return ErrSignatureMissing
	}
	return nil
}

// validateSignature confirms that the instruction directly before this one
// is the recovery program's, and that the triple it recovered matches the
// claimed signature, the registered address and the claimed message. Nothing
// is written; success only asserts batch-internal consistency.
func (p *Processor) validateSignature(ctx *core.Context, op ValidateSignature) error {
	signer, err := loadValidSigner(ctx, signerAccount)
	if err != nil {
		return err
	}
	if !signer.Initialized() {
		return ErrUninitializedSigner
	}

	current := ctx.CurrentIndex()
	if current == 0 {
		return ErrMalformedOffsets
	}
	recovery, err := ctx.InstructionAt(current - 1)
	if err != nil {
		return err
	}
	if recovery.Program != p.recovery {
		return ErrMalformedOffsets
	}
	// The recovery instruction data is a one-byte entry count followed by
	// the offsets descriptor, then the packed payload.
	if len(recovery.Data) < 1 {
		return ErrMalformedOffsets
	}
	offsets, err := DecodeSecpSignatureOffsets(recovery.Data[1:])
	if err != nil {
		return err
	}

	signature, err := p.extract(ctx, offsets.SignatureInstructionIndex, offsets.SignatureOffset, SignatureSize)
	if err != nil {
		return err
	}
	address, err := p.extract(ctx, offsets.AddressInstructionIndex, offsets.AddressOffset, common.AddressLength)
	if err != nil {
		return err
	}
	message, err := p.extract(ctx, offsets.MessageInstructionIndex, offsets.MessageOffset, int(offsets.MessageSize))
	if err != nil {
		return err
	}

	if !bytes.Equal(signature, op.Signature[:]) {
		return ErrSignatureMismatch
	}
	if !bytes.Equal(address, signer.Address[:]) {
		return ErrSignatureMismatch
	}
	if !bytes.Equal(message, op.Message) {
		return ErrSignatureMismatch
	}
	validatedSignatureCounter.Inc(1)
	return nil
}

// extract reads size bytes at offset from the data of the batch instruction
// named by index. Any reach outside the instruction stream is a malformed
// descriptor.
func (p *Processor) extract(ctx *core.Context, index uint8, offset uint16, size int) ([]byte, error) {
	if int(index) >= ctx.NumInstructions() {
		return nil, ErrMalformedOffsets
	}
	ix, err := ctx.InstructionAt(int(index))
	if err != nil {
		return nil, err
	}
	end := int(offset) + size
	if end > len(ix.Data) {
		return nil, ErrMalformedOffsets
	}
	return ix.Data[offset:end], nil
}
