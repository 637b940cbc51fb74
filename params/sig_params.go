package params

import (
	"github.com/tos-network/tossig/common"
)

// Well-known program identities. These are fixed, reserved identities that do
// not correspond to any key pair; the ledger dispatches on them directly.
var (
	// SystemProgram owns every account that no other program has claimed yet.
	// Instructions addressed to it manage account lifecycle (creation and
	// ownership assignment) and are executed by the ledger itself.
	SystemProgram = common.HexToIdentity("0x0000000000000000000000000000000000000000000000000000000053494730") // "SIG0"

	// SignerRegistryProgram is the default deployment identity of the signer
	// registry. Nodes may register the registry under a different identity;
	// this one is what the bundled tooling and tests use.
	SignerRegistryProgram = common.HexToIdentity("0x0000000000000000000000000000000000000000000000000000000053494731") // "SIG1"

	// SecpRecoverProgram verifies secp256k1 signatures against Keccak-256
	// digests. It never touches account state; other programs introspect its
	// instructions by position within the batch.
	SecpRecoverProgram = common.HexToIdentity("0x0000000000000000000000000000000000000000000000000000000053494732") // "SIG2"
)
