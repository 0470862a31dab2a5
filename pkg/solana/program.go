package solana

import (
	"crypto/ed25519"
)

// Runtime is the host surface available to a program while it executes a
// single instruction.
type Runtime interface {
	// Invoke executes a cross-program instruction. Accounts must contain every
	// account referenced by the instruction, including the target program.
	// Signer and writable privileges cannot exceed the caller's.
	Invoke(instruction Instruction, accounts ...*AccountInfo) error

	// Log records a program log line for the enclosing transaction.
	Log(format string, args ...interface{})
}

// Program is an on-chain program entrypoint.
type Program interface {
	Process(rt Runtime, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(rt Runtime, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(rt Runtime, programID ed25519.PublicKey, accounts []*AccountInfo, data []byte) error {
	return f(rt, programID, accounts, data)
}
