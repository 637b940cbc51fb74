package core

import (
	"encoding/binary"

	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
)

// System program instruction tags.
const sysCreateAccount = byte(0x00)

// createAccountDataSize is tag + owner identity + u32 data size.
const createAccountDataSize = 1 + common.IdentityLength + 4

// NewCreateAccountInstruction builds the system instruction allocating a
// zero-filled account of size bytes under the given owner program. The new
// account must co-sign the batch.
func NewCreateAccountInstruction(newAccount, owner common.Identity, size uint32) types.Instruction {
	data := make([]byte, createAccountDataSize)
	data[0] = sysCreateAccount
	copy(data[1:], owner[:])
	binary.BigEndian.PutUint32(data[1+common.IdentityLength:], size)
	return types.NewInstruction(params.SystemProgram, []types.AccountMeta{
		{Key: newAccount, Signer: true, Writable: true},
	}, data)
}

// systemProgram allocates accounts. It is the only program that may bring new
// accounts into existence; everything else mutates accounts it already owns.
type systemProgram struct{}

func (systemProgram) Run(ctx *Context) error {
	data := ctx.Data()
	if len(data) == 0 {
		return ErrInvalidSystemInstruction
	}
	switch data[0] {
	case sysCreateAccount:
		return runCreateAccount(ctx, data)
	default:
		return ErrInvalidSystemInstruction
	}
}

func runCreateAccount(ctx *Context, data []byte) error {
	if len(data) != createAccountDataSize || ctx.NumAccounts() != 1 {
		return ErrInvalidSystemInstruction
	}
	signer, err := ctx.IsSigner(0)
	if err != nil {
		return err
	}
	writable, err := ctx.IsWritable(0)
	if err != nil {
		return err
	}
	if !signer || !writable {
		return ErrCreateRequiresSigner
	}
	var owner common.Identity
	copy(owner[:], data[1:1+common.IdentityLength])
	size := binary.BigEndian.Uint32(data[1+common.IdentityLength:])

	key, err := ctx.AccountKey(0)
	if err != nil {
		return err
	}
	return ctx.journal.create(key, owner, size)
}
