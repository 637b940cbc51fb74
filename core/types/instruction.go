package types

import (
	"github.com/tos-network/tossig/common"
)

// Account meta flag bits in the batch encoding.
const (
	metaFlagSigner   byte = 0x01
	metaFlagWritable byte = 0x02
)

// AccountMeta names one account an instruction touches and how. Signer means
// the batch must carry a signature from the account's key; Writable means the
// executing program may mutate the account through this meta.
type AccountMeta struct {
	Key      common.Identity
	Signer   bool
	Writable bool
}

func (m AccountMeta) flags() byte {
	var f byte
	if m.Signer {
		f |= metaFlagSigner
	}
	if m.Writable {
		f |= metaFlagWritable
	}
	return f
}

// Instruction is one program invocation inside a batch: the program identity
// to dispatch to, the accounts handed to it, and an opaque data payload only
// the program interprets.
type Instruction struct {
	Program  common.Identity
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction assembles an instruction, copying the data payload.
func NewInstruction(program common.Identity, accounts []AccountMeta, data []byte) Instruction {
	return Instruction{
		Program:  program,
		Accounts: append([]AccountMeta(nil), accounts...),
		Data:     common.CopyBytes(data),
	}
}

// Copy returns a deep copy of the instruction.
func (ix *Instruction) Copy() Instruction {
	return Instruction{
		Program:  ix.Program,
		Accounts: append([]AccountMeta(nil), ix.Accounts...),
		Data:     common.CopyBytes(ix.Data),
	}
}
