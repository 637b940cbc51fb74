package sigreg

import "github.com/tos-network/tossig/common"

const (
	// RecordVersion is written into a record's version slot on
	// initialization. Version 0 always means uninitialized.
	RecordVersion byte = 1

	// SignerGroupSize is the exact allocated size of a signer group record.
	SignerGroupSize = 1 + common.IdentityLength

	// ValidSignerSize is the exact allocated size of a valid signer record.
	ValidSignerSize = 1 + common.IdentityLength + common.AddressLength

	// SignatureSize is the length of a secp256k1 signature without its
	// recovery id.
	SignatureSize = 64
)

// SignerGroup is an authorization domain: the owner alone may register and
// remove valid signers under it.
type SignerGroup struct {
	Version byte
	Owner   common.Identity
}

// Initialized reports whether the group record has been initialized.
func (g *SignerGroup) Initialized() bool { return g.Version != 0 }

// ValidSigner registers one external address as trusted under a signer group.
// Version is the sole validity signal: a cleared signer keeps stale group and
// address bytes.
type ValidSigner struct {
	Version byte
	Group   common.Identity
	Address common.Address
}

// Initialized reports whether the signer record is active.
func (s *ValidSigner) Initialized() bool { return s.Version != 0 }
