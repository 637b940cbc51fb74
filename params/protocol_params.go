package params

const (
	MaxAccountDataSize     uint64 = 1 << 20 // Maximum byte size of a single account's data region.
	MaxInstructionAccounts        = 32      // Maximum number of account metas a single instruction may reference.
	MaxInstructionDataSize        = 1 << 16 // Maximum byte size of a single instruction's data payload.
	MaxBatchInstructions          = 64      // Maximum number of instructions in one batch.
	MaxBatchSigners               = 16      // Maximum number of distinct signing keys on one batch.

	BatchVersion byte = 1 // Wire version of the batch envelope. Bump on any envelope layout change.
)

// BatchSigningPrefix is mixed into every batch digest before signing, keeping
// batch signatures from colliding with any other signed payload.
const BatchSigningPrefix = "TOSSIGBATCH1"
