package core

import "errors"

var (
	// ErrUnknownProgram indicates an instruction addressed to an identity no
	// program is registered under.
	ErrUnknownProgram = errors.New("core: no program registered for identity")

	// ErrProgramExists indicates a duplicate program registration.
	ErrProgramExists = errors.New("core: program already registered")

	// ErrAccountIndex indicates an account index outside the instruction's
	// account list.
	ErrAccountIndex = errors.New("core: account index out of range")

	// ErrInstructionIndex indicates an instruction index outside the batch.
	ErrInstructionIndex = errors.New("core: instruction index out of range")

	// ErrAccountNotFound indicates access to an account that does not exist.
	ErrAccountNotFound = errors.New("core: account does not exist")

	// ErrAccountExists indicates allocation over an existing account.
	ErrAccountExists = errors.New("core: account already exists")

	// ErrAccountNotWritable indicates a write through a read-only account meta.
	ErrAccountNotWritable = errors.New("core: account not writable by instruction")

	// ErrNotAccountOwner indicates a program writing an account it does not own.
	ErrNotAccountOwner = errors.New("core: executing program does not own account")

	// ErrAccountDataSize indicates a write that would resize account data.
	ErrAccountDataSize = errors.New("core: account writes may not resize data")

	// ErrAccountTooLarge indicates an allocation above the account data cap.
	ErrAccountTooLarge = errors.New("core: account allocation exceeds data cap")

	// ErrInvalidSystemInstruction indicates malformed system program data.
	ErrInvalidSystemInstruction = errors.New("core: invalid system instruction")

	// ErrCreateRequiresSigner indicates account creation without the new key's
	// signature.
	ErrCreateRequiresSigner = errors.New("core: new account must sign its creation")
)
