// Package secprecover implements the secp256k1 signature recovery program.
// Its instructions carry self-describing entries locating a signature, a
// claimed address and a message inside the batch's instruction stream; Run
// re-derives the address from the signature and fails the batch on any
// disagreement. Programs running later in the same batch may then trust the
// located triple without touching the curve themselves.
package secprecover

import (
	"errors"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
	"github.com/tos-network/tossig/crypto"
)

// SignatureSize is the length of a secp256k1 signature without its recovery
// id.
const SignatureSize = 64

// Entry layout constants. The descriptor encoding is shared wire format with
// the programs consuming recovery output, but each side owns its parse.
const (
	entryCountSize = 1
	offsetsSize    = 11
	addressSize    = common.AddressLength
	recoveryIDSize = 1
)

var (
	// ErrInvalidDataSize indicates instruction data too short for its
	// declared entries.
	ErrInvalidDataSize = errors.New("secprecover: invalid instruction data size")

	// ErrInvalidOffsets indicates a descriptor reaching outside the batch's
	// instruction stream.
	ErrInvalidOffsets = errors.New("secprecover: invalid data offsets")

	// ErrInvalidSignature indicates an unrecoverable signature or recovery
	// id.
	ErrInvalidSignature = errors.New("secprecover: invalid signature")

	// ErrAddressMismatch indicates the recovered address differs from the
	// claimed one.
	ErrAddressMismatch = errors.New("secprecover: recovered address mismatch")
)

// signatureOffsets locates one entry's signature, claimed address and
// message. Each u16 is wire-encoded as a (remainder, quotient) pair with
// quotient = value/256.
type signatureOffsets struct {
	signatureOffset           uint16
	signatureInstructionIndex uint8
	addressOffset             uint16
	addressInstructionIndex   uint8
	messageOffset             uint16
	messageSize               uint16
	messageInstructionIndex   uint8
}

func splitOffset(v uint16) (remainder, quotient byte) {
	if v >= 256 {
		return byte(v % 256), byte(v / 256)
	}
	return byte(v), 0
}

func joinOffset(remainder, quotient byte) uint16 {
	return uint16(remainder) + 256*uint16(quotient)
}

func appendOffsets(buf []byte, o signatureOffsets) []byte {
	r, q := splitOffset(o.signatureOffset)
	buf = append(buf, r, q, o.signatureInstructionIndex)
	r, q = splitOffset(o.addressOffset)
	buf = append(buf, r, q, o.addressInstructionIndex)
	r, q = splitOffset(o.messageOffset)
	buf = append(buf, r, q)
	r, q = splitOffset(o.messageSize)
	buf = append(buf, r, q, o.messageInstructionIndex)
	return buf
}

func parseOffsets(data []byte) signatureOffsets {
	return signatureOffsets{
		signatureOffset:           joinOffset(data[0], data[1]),
		signatureInstructionIndex: data[2],
		addressOffset:             joinOffset(data[3], data[4]),
		addressInstructionIndex:   data[5],
		messageOffset:             joinOffset(data[6], data[7]),
		messageSize:               joinOffset(data[8], data[9]),
		messageInstructionIndex:   data[10],
	}
}

// Program is the recovery co-processor. It holds no state; every invocation
// checks only its own instruction data against the batch.
type Program struct{}

// Run verifies every entry packed into the instruction data.
func (Program) Run(ctx *core.Context) error {
	data := ctx.Data()
	if len(data) < entryCountSize {
		return ErrInvalidDataSize
	}
	count := int(data[0])
	if count == 0 {
		return ErrInvalidDataSize
	}
	if len(data) < entryCountSize+count*offsetsSize {
		return ErrInvalidDataSize
	}
	for i := 0; i < count; i++ {
		start := entryCountSize + i*offsetsSize
		if err := verifyEntry(ctx, parseOffsets(data[start:start+offsetsSize])); err != nil {
			return err
		}
	}
	return nil
}

// verifyEntry recovers the signer address of one entry and compares it to
// the claimed address bytes. The signature slot holds the 64-byte signature
// directly followed by its recovery id.
func verifyEntry(ctx *core.Context, o signatureOffsets) error {
	signature, err := extract(ctx, o.signatureInstructionIndex, o.signatureOffset, SignatureSize+recoveryIDSize)
	if err != nil {
		return err
	}
	claimed, err := extract(ctx, o.addressInstructionIndex, o.addressOffset, addressSize)
	if err != nil {
		return err
	}
	message, err := extract(ctx, o.messageInstructionIndex, o.messageOffset, int(o.messageSize))
	if err != nil {
		return err
	}

	pubkey, err := crypto.Ecrecover(crypto.Keccak256(message), signature)
	if err != nil {
		return ErrInvalidSignature
	}
	recovered := common.BytesToAddress(crypto.Keccak256(pubkey[1:])[12:])
	if recovered != common.BytesToAddress(claimed) {
		return ErrAddressMismatch
	}
	return nil
}

func extract(ctx *core.Context, index uint8, offset uint16, size int) ([]byte, error) {
	if int(index) >= ctx.NumInstructions() {
		return nil, ErrInvalidOffsets
	}
	ix, err := ctx.InstructionAt(int(index))
	if err != nil {
		return nil, err
	}
	end := int(offset) + size
	if end > len(ix.Data) {
		return nil, ErrInvalidOffsets
	}
	return ix.Data[offset:end], nil
}
