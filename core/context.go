package core

import (
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/types"
)

// Context is the execution environment handed to a program for one
// instruction: the accounts the instruction named, write access gated by meta
// flags and ownership, and read-only introspection of the whole batch by
// instruction index.
type Context struct {
	journal *journal
	batch   *types.Batch
	index   int
}

func newContext(j *journal, batch *types.Batch, index int) *Context {
	return &Context{journal: j, batch: batch, index: index}
}

func (ctx *Context) instruction() *types.Instruction {
	return &ctx.batch.Instructions[ctx.index]
}

func (ctx *Context) meta(i int) (*types.AccountMeta, error) {
	accounts := ctx.instruction().Accounts
	if i < 0 || i >= len(accounts) {
		return nil, ErrAccountIndex
	}
	return &accounts[i], nil
}

// Program returns the identity the current instruction dispatched to.
func (ctx *Context) Program() common.Identity {
	return ctx.instruction().Program
}

// Data returns a copy of the current instruction's data payload.
func (ctx *Context) Data() []byte {
	return common.CopyBytes(ctx.instruction().Data)
}

// NumAccounts returns the number of accounts the instruction named.
func (ctx *Context) NumAccounts() int {
	return len(ctx.instruction().Accounts)
}

// AccountKey returns the identity of account meta i.
func (ctx *Context) AccountKey(i int) (common.Identity, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return common.Identity{}, err
	}
	return meta.Key, nil
}

// IsSigner reports whether account meta i is covered by a batch signature.
func (ctx *Context) IsSigner(i int) (bool, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return false, err
	}
	return meta.Signer, nil
}

// IsWritable reports whether account meta i was passed writable.
func (ctx *Context) IsWritable(i int) (bool, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return false, err
	}
	return meta.Writable, nil
}

// AccountExists reports whether the account named by meta i exists.
func (ctx *Context) AccountExists(i int) (bool, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return false, err
	}
	return ctx.journal.account(meta.Key) != nil, nil
}

// AccountOwner returns the program identity owning the account named by meta i.
func (ctx *Context) AccountOwner(i int) (common.Identity, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return common.Identity{}, err
	}
	acc := ctx.journal.account(meta.Key)
	if acc == nil {
		return common.Identity{}, ErrAccountNotFound
	}
	return acc.Owner, nil
}

// AccountData returns a copy of the data of the account named by meta i.
func (ctx *Context) AccountData(i int) ([]byte, error) {
	meta, err := ctx.meta(i)
	if err != nil {
		return nil, err
	}
	acc := ctx.journal.account(meta.Key)
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return common.CopyBytes(acc.Data), nil
}

// SetAccountData replaces the data of the account named by meta i. The meta
// must be writable, the executing program must own the account, and the new
// data must keep the allocated size.
func (ctx *Context) SetAccountData(i int, data []byte) error {
	meta, err := ctx.meta(i)
	if err != nil {
		return err
	}
	if !meta.Writable {
		return ErrAccountNotWritable
	}
	acc := ctx.journal.account(meta.Key)
	if acc == nil {
		return ErrAccountNotFound
	}
	if acc.Owner != ctx.Program() {
		return ErrNotAccountOwner
	}
	return ctx.journal.setData(meta.Key, data)
}

// CurrentIndex returns the position of the executing instruction within the
// batch.
func (ctx *Context) CurrentIndex() int {
	return ctx.index
}

// NumInstructions returns the number of instructions in the batch.
func (ctx *Context) NumInstructions() int {
	return len(ctx.batch.Instructions)
}

// InstructionAt returns a copy of the batch instruction at index i. Programs
// use it to inspect claims made by instructions that ran earlier in the batch.
func (ctx *Context) InstructionAt(i int) (types.Instruction, error) {
	if i < 0 || i >= len(ctx.batch.Instructions) {
		return types.Instruction{}, ErrInstructionIndex
	}
	return ctx.batch.Instructions[i].Copy(), nil
}
