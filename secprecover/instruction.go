package secprecover

import (
	"crypto/ecdsa"
	"math"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/crypto"
)

// SignMessage signs the Keccak-256 digest of message, returning the 64-byte
// signature and recovery id in the program's wire form.
func SignMessage(key *ecdsa.PrivateKey, message []byte) ([SignatureSize]byte, byte, error) {
	var signature [SignatureSize]byte
	full, err := crypto.Sign(crypto.Keccak256(message), key)
	if err != nil {
		return signature, 0, err
	}
	copy(signature[:], full[:SignatureSize])
	return signature, full[SignatureSize], nil
}

// NewRecoverInstruction packs one recovery entry claiming that signature and
// recovery id over message were produced by address. The entry's descriptor
// points into the instruction's own data, so position must be the slot the
// instruction will occupy in its batch.
func NewRecoverInstruction(program common.Identity, address common.Address, signature [SignatureSize]byte, recoveryID byte, message []byte, position uint8) (types.Instruction, error) {
	if len(message) > math.MaxUint16 {
		return types.Instruction{}, ErrInvalidDataSize
	}
	const payloadStart = entryCountSize + offsetsSize
	offsets := signatureOffsets{
		signatureOffset:           payloadStart + addressSize,
		signatureInstructionIndex: position,
		addressOffset:             payloadStart,
		addressInstructionIndex:   position,
		messageOffset:             payloadStart + addressSize + SignatureSize + recoveryIDSize,
		messageSize:               uint16(len(message)),
		messageInstructionIndex:   position,
	}
	data := make([]byte, 0, payloadStart+addressSize+SignatureSize+recoveryIDSize+len(message))
	data = append(data, 1)
	data = appendOffsets(data, offsets)
	data = append(data, address[:]...)
	data = append(data, signature[:]...)
	data = append(data, recoveryID)
	data = append(data, message...)
	return types.NewInstruction(program, nil, data), nil
}
