package sigreg

import "errors"

var (
	// ErrInvalidOperation indicates an empty request buffer, an unknown tag
	// or a fixed payload shorter than required.
	ErrInvalidOperation = errors.New("sigreg: invalid operation")

	// ErrAlreadyInitialized indicates a repeated signer group initialization.
	ErrAlreadyInitialized = errors.New("sigreg: signer group already initialized")

	// ErrAlreadySignerInitialized indicates a repeated valid signer
	// initialization.
	ErrAlreadySignerInitialized = errors.New("sigreg: valid signer already initialized")

	// ErrUninitializedGroup indicates an operation against a signer group
	// whose record has not been initialized.
	ErrUninitializedGroup = errors.New("sigreg: signer group not initialized")

	// ErrUninitializedSigner indicates signature validation against a
	// cleared or never initialized valid signer.
	ErrUninitializedSigner = errors.New("sigreg: valid signer not initialized")

	// ErrWrongOwner indicates the claimed owner does not match the signer
	// group's owner.
	ErrWrongOwner = errors.New("sigreg: wrong signer group owner")

	// ErrSignatureMissing indicates the group owner did not sign the batch.
	ErrSignatureMissing = errors.New("sigreg: owner signature missing")

	// ErrMalformedOffsets indicates the recovery program's offsets record is
	// absent, undersized or points outside the batch.
	ErrMalformedOffsets = errors.New("sigreg: malformed signature offsets")

	// ErrSignatureMismatch indicates the recovered signature, address and
	// message do not match the claimed ones.
	ErrSignatureMismatch = errors.New("sigreg: signature mismatch")

	// ErrInvalidRecord indicates a persisted record of the wrong size.
	ErrInvalidRecord = errors.New("sigreg: invalid record encoding")
)
