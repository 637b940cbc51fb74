package sigreg

import (
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
)

// Wire tags of the registry operations.
const (
	TagInitSignerGroup   byte = 0
	TagInitValidSigner   byte = 1
	TagClearValidSigner  byte = 2
	TagValidateSignature byte = 3
)

// Operation is a decoded registry request.
type Operation interface {
	// Tag returns the wire tag identifying the operation.
	Tag() byte
}

// InitSignerGroup initializes a signer group record, assigning its owner.
type InitSignerGroup struct{}

// InitValidSigner registers an external address as a valid signer under an
// initialized group.
type InitValidSigner struct {
	Address common.Address
}

// ClearValidSigner revokes a valid signer by resetting its version.
type ClearValidSigner struct{}

// ValidateSignature asserts that the recovery program, earlier in the same
// batch, recovered the registered address from exactly this signature and
// message. The message is every byte after the fixed 65-byte prefix.
type ValidateSignature struct {
	Signature  [SignatureSize]byte
	RecoveryID byte
	Message    []byte
}

// Tag implements Operation.
func (InitSignerGroup) Tag() byte { return TagInitSignerGroup }

// Tag implements Operation.
func (InitValidSigner) Tag() byte { return TagInitValidSigner }

// Tag implements Operation.
func (ClearValidSigner) Tag() byte { return TagClearValidSigner }

// Tag implements Operation.
func (ValidateSignature) Tag() byte { return TagValidateSignature }

// EncodeOperation packs op into its tag-prefixed wire form.
func EncodeOperation(op Operation) ([]byte, error) {
	switch op := op.(type) {
	case InitSignerGroup:
		return []byte{TagInitSignerGroup}, nil
	case InitValidSigner:
		buf := make([]byte, 1+common.AddressLength)
		buf[0] = TagInitValidSigner
		copy(buf[1:], op.Address[:])
		return buf, nil
	case ClearValidSigner:
		return []byte{TagClearValidSigner}, nil
	case ValidateSignature:
		buf := make([]byte, 1+SignatureSize+1+len(op.Message))
		buf[0] = TagValidateSignature
		copy(buf[1:], op.Signature[:])
		buf[1+SignatureSize] = op.RecoveryID
		copy(buf[1+SignatureSize+1:], op.Message)
		return buf, nil
	default:
		return nil, ErrInvalidOperation
	}
}

// DecodeOperation unpacks a tag-prefixed request buffer. Bytes past a fixed
// payload are ignored; the validate-signature message consumes the remainder.
func DecodeOperation(data []byte) (Operation, error) {
	if len(data) == 0 {
		return nil, ErrInvalidOperation
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case TagInitSignerGroup:
		return InitSignerGroup{}, nil
	case TagInitValidSigner:
		if len(rest) < common.AddressLength {
			return nil, ErrInvalidOperation
		}
		var op InitValidSigner
		copy(op.Address[:], rest[:common.AddressLength])
		return op, nil
	case TagClearValidSigner:
		return ClearValidSigner{}, nil
	case TagValidateSignature:
		if len(rest) < SignatureSize+1 {
			return nil, ErrInvalidOperation
		}
		var op ValidateSignature
		copy(op.Signature[:], rest[:SignatureSize])
		op.RecoveryID = rest[SignatureSize]
		op.Message = common.CopyBytes(rest[SignatureSize+1:])
		return op, nil
	default:
		return nil, ErrInvalidOperation
	}
}

// NewInitSignerGroupInstruction builds the registry instruction initializing
// group with the given owner. The owner is assigned, not authenticated, so no
// signature is demanded here.
func NewInitSignerGroupInstruction(program, group, owner common.Identity) (types.Instruction, error) {
	data, err := EncodeOperation(InitSignerGroup{})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.NewInstruction(program, []types.AccountMeta{
		{Key: group, Writable: true},
		{Key: owner},
	}, data), nil
}

// NewInitValidSignerInstruction builds the registry instruction registering
// address as a valid signer under group. The group owner must sign the batch.
func NewInitValidSignerInstruction(program, signer, group, owner common.Identity, address common.Address) (types.Instruction, error) {
	data, err := EncodeOperation(InitValidSigner{Address: address})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.NewInstruction(program, []types.AccountMeta{
		{Key: signer, Writable: true},
		{Key: group},
		{Key: owner, Signer: true},
	}, data), nil
}

// NewClearValidSignerInstruction builds the registry instruction revoking the
// valid signer. The group owner must sign the batch.
func NewClearValidSignerInstruction(program, signer, group, owner common.Identity) (types.Instruction, error) {
	data, err := EncodeOperation(ClearValidSigner{})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.NewInstruction(program, []types.AccountMeta{
		{Key: signer, Writable: true},
		{Key: group},
		{Key: owner, Signer: true},
	}, data), nil
}

// NewValidateSignatureInstruction builds the registry instruction checking a
// signature against the valid signer. It must be placed immediately after the
// recovery program's instruction in the batch.
func NewValidateSignatureInstruction(program, signer, group common.Identity, signature [SignatureSize]byte, recoveryID byte, message []byte) (types.Instruction, error) {
	data, err := EncodeOperation(ValidateSignature{
		Signature:  signature,
		RecoveryID: recoveryID,
		Message:    message,
	})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.NewInstruction(program, []types.AccountMeta{
		{Key: signer},
		{Key: group},
	}, data), nil
}
