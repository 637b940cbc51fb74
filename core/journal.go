package core

import (
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core/rawdb"
	"github.com/tos-network/tossig/core/types"
	"github.com/tos-network/tossig/params"
	"github.com/tos-network/tossig/sigdb"
)

// AccountReader provides read access to committed account state.
type AccountReader interface {
	// Account returns a copy of the account stored under id, or nil when the
	// account does not exist.
	Account(id common.Identity) *types.Account
}

// journal is a copy-on-write overlay over committed account state. Reads are
// served from the overlay first, then the parent. Writes land in the overlay
// only; commit flushes them through a database writer in one go. A batch that
// fails simply drops its journal, leaving the parent untouched.
type journal struct {
	parent  AccountReader
	overlay map[common.Identity]*types.Account
}

func newJournal(parent AccountReader) *journal {
	return &journal{
		parent:  parent,
		overlay: make(map[common.Identity]*types.Account),
	}
}

// account returns the current view of id: staged overlay state if present,
// committed parent state otherwise. The overlay retains ownership of returned
// pointers; callers must not mutate them.
func (j *journal) account(id common.Identity) *types.Account {
	if acc, ok := j.overlay[id]; ok {
		return acc
	}
	return j.parent.Account(id)
}

// setData stages replacement data for an existing account. Writes may not
// resize the allocation.
func (j *journal) setData(id common.Identity, data []byte) error {
	acc := j.account(id)
	if acc == nil {
		return ErrAccountNotFound
	}
	if len(data) != len(acc.Data) {
		return ErrAccountDataSize
	}
	j.overlay[id] = &types.Account{Owner: acc.Owner, Data: common.CopyBytes(data)}
	return nil
}

// create stages a zero-filled account of size bytes owned by owner.
func (j *journal) create(id, owner common.Identity, size uint32) error {
	if j.account(id) != nil {
		return ErrAccountExists
	}
	if uint64(size) > params.MaxAccountDataSize {
		return ErrAccountTooLarge
	}
	j.overlay[id] = &types.Account{Owner: owner, Data: make([]byte, size)}
	return nil
}

// commit writes every staged account through db.
func (j *journal) commit(db sigdb.KeyValueWriter) {
	for id, acc := range j.overlay {
		rawdb.WriteAccount(db, id, acc)
	}
}

// each invokes fn for every staged account.
func (j *journal) each(fn func(id common.Identity, acc *types.Account)) {
	for id, acc := range j.overlay {
		fn(id, acc)
	}
}
