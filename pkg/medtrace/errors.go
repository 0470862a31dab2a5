package medtrace

import (
	"fmt"

	"github.com/medweb3/medtrace/pkg/solana"
)

// ProgramError is a failure raised by the batch program. Codes are stable and
// surface to clients as custom instruction errors.
type ProgramError uint32

const (
	// Instruction data could not be decoded
	ErrInvalidInstruction ProgramError = iota + 0x1770

	// A required principal did not sign the transaction
	ErrMissingSignature

	// The batch slot is not owned by this program
	ErrWrongProgramOwner

	// The signer is not the current owner of the batch
	ErrNotCurrentOwner

	// The batch slot data is not a valid batch account
	ErrInvalidSlotData

	// The encoded batch account does not fit in the slot
	ErrCapacityExceeded

	// The batch id is empty or too long
	ErrInvalidBatchId

	// The batch has been deactivated
	ErrBatchInactive

	// The new batch slot is already in use
	ErrSlotAlreadyInitialized

	// Fewer accounts were supplied than the instruction requires
	ErrNotEnoughAccounts

	// A rent or clock sysvar account is missing or malformed
	ErrInvalidOracle
)

var programErrorNames = map[ProgramError]string{
	ErrInvalidInstruction:     "InvalidInstruction",
	ErrMissingSignature:       "MissingSignature",
	ErrWrongProgramOwner:      "WrongProgramOwner",
	ErrNotCurrentOwner:        "NotCurrentOwner",
	ErrInvalidSlotData:        "InvalidSlotData",
	ErrCapacityExceeded:       "CapacityExceeded",
	ErrInvalidBatchId:         "InvalidBatchId",
	ErrBatchInactive:          "BatchInactive",
	ErrSlotAlreadyInitialized: "SlotAlreadyInitialized",
	ErrNotEnoughAccounts:      "NotEnoughAccounts",
	ErrInvalidOracle:          "InvalidOracle",
}

func (e ProgramError) Error() string {
	if name, ok := programErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ProgramError(%#x)", uint32(e))
}

func (e ProgramError) ToCustomError() solana.CustomError {
	return solana.CustomError(e)
}
