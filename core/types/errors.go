package types

import "errors"

var (
	// ErrInvalidEncoding indicates malformed batch bytes.
	ErrInvalidEncoding = errors.New("types: invalid batch encoding")

	// ErrInvalidRecordEncoding indicates malformed batch record bytes.
	ErrInvalidRecordEncoding = errors.New("types: invalid batch record encoding")

	// ErrEmptyBatch indicates a batch with no instructions.
	ErrEmptyBatch = errors.New("types: batch has no instructions")

	// ErrBatchTooLarge indicates the instruction count exceeds the batch cap.
	ErrBatchTooLarge = errors.New("types: too many instructions in batch")

	// ErrTooManyAccounts indicates an instruction references too many accounts.
	ErrTooManyAccounts = errors.New("types: too many account metas in instruction")

	// ErrDataTooLarge indicates oversized instruction data.
	ErrDataTooLarge = errors.New("types: instruction data too large")

	// ErrDuplicateAccount indicates one instruction naming the same account twice.
	ErrDuplicateAccount = errors.New("types: duplicate account meta in instruction")

	// ErrTooManySigners indicates the batch requires or carries too many signatures.
	ErrTooManySigners = errors.New("types: too many batch signers")

	// ErrInvalidKey indicates a malformed ed25519 signing key.
	ErrInvalidKey = errors.New("types: invalid ed25519 key")

	// ErrSignatureInvalid indicates an attached batch signature that does not verify.
	ErrSignatureInvalid = errors.New("types: batch signature invalid")

	// ErrSignerMissing indicates a required signer with no attached signature.
	ErrSignerMissing = errors.New("types: required batch signature missing")
)
