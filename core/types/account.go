package types

import (
	"github.com/tos-network/tossig/common"
)

// Account is one record on the ledger. Owner names the program identity
// permitted to mutate Data; anyone may read it.
type Account struct {
	Owner common.Identity
	Data  []byte
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	return &Account{
		Owner: a.Owner,
		Data:  common.CopyBytes(a.Data),
	}
}

// EncodeBinary packs the account as owner || data for storage.
func (a *Account) EncodeBinary() []byte {
	out := make([]byte, common.IdentityLength+len(a.Data))
	copy(out, a.Owner[:])
	copy(out[common.IdentityLength:], a.Data)
	return out
}

// DecodeAccount is the inverse of EncodeBinary.
func DecodeAccount(blob []byte) (*Account, error) {
	if len(blob) < common.IdentityLength {
		return nil, ErrInvalidEncoding
	}
	acc := &Account{Data: common.CopyBytes(blob[common.IdentityLength:])}
	acc.Owner.SetBytes(blob[:common.IdentityLength])
	return acc, nil
}
