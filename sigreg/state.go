package sigreg

import (
	"github.com/tos-network/tossig/common"
	"github.com/tos-network/tossig/core"
)

// Record layouts are fixed size with every field at a hard-coded range, so a
// buffer of any other length is a broken allocation, not a shorter schema.

// EncodeSignerGroup packs a signer group record.
func EncodeSignerGroup(g SignerGroup) []byte {
	buf := make([]byte, SignerGroupSize)
	buf[0] = g.Version
	copy(buf[1:], g.Owner[:])
	return buf
}

// DecodeSignerGroup unpacks a signer group record.
func DecodeSignerGroup(data []byte) (SignerGroup, error) {
	if len(data) != SignerGroupSize {
		return SignerGroup{}, ErrInvalidRecord
	}
	var g SignerGroup
	g.Version = data[0]
	copy(g.Owner[:], data[1:1+common.IdentityLength])
	return g, nil
}

// EncodeValidSigner packs a valid signer record.
func EncodeValidSigner(s ValidSigner) []byte {
	buf := make([]byte, ValidSignerSize)
	buf[0] = s.Version
	copy(buf[1:], s.Group[:])
	copy(buf[1+common.IdentityLength:], s.Address[:])
	return buf
}

// DecodeValidSigner unpacks a valid signer record.
func DecodeValidSigner(data []byte) (ValidSigner, error) {
	if len(data) != ValidSignerSize {
		return ValidSigner{}, ErrInvalidRecord
	}
	var s ValidSigner
	s.Version = data[0]
	copy(s.Group[:], data[1:1+common.IdentityLength])
	copy(s.Address[:], data[1+common.IdentityLength:])
	return s, nil
}

func loadSignerGroup(ctx *core.Context, account int) (SignerGroup, error) {
	data, err := ctx.AccountData(account)
	if err != nil {
		return SignerGroup{}, err
	}
	return DecodeSignerGroup(data)
}

func storeSignerGroup(ctx *core.Context, account int, g SignerGroup) error {
	return ctx.SetAccountData(account, EncodeSignerGroup(g))
}

func loadValidSigner(ctx *core.Context, account int) (ValidSigner, error) {
	data, err := ctx.AccountData(account)
	if err != nil {
		return ValidSigner{}, err
	}
	return DecodeValidSigner(data)
}

func storeValidSigner(ctx *core.Context, account int, s ValidSigner) error {
	return ctx.SetAccountData(account, EncodeValidSigner(s))
}
