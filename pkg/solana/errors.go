package solana

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// TransactionErrorKey is the string key of a transaction level failure.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountNotFound        TransactionErrorKey = "AccountNotFound"        // Attempt to debit an account but found no record of a prior credit.
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee" // The fee payer does not have sufficient balance to pay the fee
	TransactionErrorInstructionError       TransactionErrorKey = "InstructionError"       // An error occurred while processing an instruction.
	TransactionErrorMissingSignatureForFee TransactionErrorKey = "MissingSignatureForFee" // Transaction requires a fee but has no signature present
	TransactionErrorInvalidAccountIndex    TransactionErrorKey = "InvalidAccountIndex"    // Transaction contains an invalid account reference
	TransactionErrorSignatureFailure       TransactionErrorKey = "SignatureFailure"       // Transaction did not pass signature verification
	TransactionErrorSanitizeFailure        TransactionErrorKey = "SanitizeFailure"        // Transaction failed to sanitize accounts offsets correctly
	TransactionErrorProgramAccountNotFound TransactionErrorKey = "ProgramAccountNotFound" // Attempt to load a program that does not exist
	TransactionErrorAlreadyProcessed       TransactionErrorKey = "AlreadyProcessed"       // This transaction has already been processed
	TransactionErrorBlockhashNotFound      TransactionErrorKey = "BlockhashNotFound"      // The blockhash is unknown or too old
)

// InstructionErrorKey is the string key of a builtin instruction failure.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall       InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorReadonlyDataModified      InstructionErrorKey = "ReadonlyDataModified"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorAccountBorrowFailed       InstructionErrorKey = "AccountBorrowFailed"
	InstructionErrorAccountBorrowOutstanding  InstructionErrorKey = "AccountBorrowOutstanding"
	InstructionErrorUnsupportedProgramID      InstructionErrorKey = "UnsupportedProgramId"
	InstructionErrorPrivilegeEscalation       InstructionErrorKey = "PrivilegeEscalation"
	InstructionErrorModifiedProgramID         InstructionErrorKey = "ModifiedProgramId"
	InstructionErrorExternalDataModified      InstructionErrorKey = "ExternalAccountDataModified"
	InstructionErrorExternalLamportSpend      InstructionErrorKey = "ExternalAccountLamportSpend"
	InstructionErrorReadonlyLamportChange     InstructionErrorKey = "ReadonlyLamportChange"
	InstructionErrorUnbalancedInstruction     InstructionErrorKey = "UnbalancedInstruction"
	InstructionErrorCallDepth                 InstructionErrorKey = "CallDepth"
	InstructionErrorArithmeticOverflow        InstructionErrorKey = "ArithmeticOverflow"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
)

// Builtin instruction errors. Their messages are the instruction error keys
// so that InstructionError.ErrorKey can recover them.
var (
	ErrInvalidArgument           = errors.New(string(InstructionErrorInvalidArgument))
	ErrInvalidInstructionData    = errors.New(string(InstructionErrorInvalidInstructionData))
	ErrInvalidAccountData        = errors.New(string(InstructionErrorInvalidAccountData))
	ErrAccountDataTooSmall       = errors.New(string(InstructionErrorAccountDataTooSmall))
	ErrInsufficientFunds         = errors.New(string(InstructionErrorInsufficientFunds))
	ErrIncorrectProgramID        = errors.New(string(InstructionErrorIncorrectProgramID))
	ErrMissingRequiredSignature  = errors.New(string(InstructionErrorMissingRequiredSignature))
	ErrAccountAlreadyInitialized = errors.New(string(InstructionErrorAccountAlreadyInitialized))
	ErrReadonlyDataModified      = errors.New(string(InstructionErrorReadonlyDataModified))
	ErrNotEnoughAccountKeys      = errors.New(string(InstructionErrorNotEnoughAccountKeys))
	ErrAccountBorrowFailed       = errors.New(string(InstructionErrorAccountBorrowFailed))
	ErrAccountBorrowOutstanding  = errors.New(string(InstructionErrorAccountBorrowOutstanding))
	ErrUnsupportedProgramID      = errors.New(string(InstructionErrorUnsupportedProgramID))
	ErrPrivilegeEscalation       = errors.New(string(InstructionErrorPrivilegeEscalation))
	ErrModifiedProgramID         = errors.New(string(InstructionErrorModifiedProgramID))
	ErrExternalDataModified      = errors.New(string(InstructionErrorExternalDataModified))
	ErrExternalLamportSpend      = errors.New(string(InstructionErrorExternalLamportSpend))
	ErrReadonlyLamportChange     = errors.New(string(InstructionErrorReadonlyLamportChange))
	ErrUnbalancedInstruction     = errors.New(string(InstructionErrorUnbalancedInstruction))
	ErrCallDepth                 = errors.New(string(InstructionErrorCallDepth))
	ErrArithmeticOverflow        = errors.New(string(InstructionErrorArithmeticOverflow))
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

// ErrorKey returns the builtin key of the underlying error, or
// InstructionErrorCustom for program specific errors.
func (i InstructionError) ErrorKey() InstructionErrorKey {
	if i.Err == nil {
		return ""
	}

	if i.CustomError() != nil {
		return InstructionErrorCustom
	}

	return InstructionErrorKey(errors.Cause(i.Err).Error())
}

// CustomError returns the program specific error code, if any. Program errors
// may either be a CustomError or carry one via a ToCustomError method.
func (i InstructionError) CustomError() *CustomError {
	var ce CustomError
	if errors.As(i.Err, &ce) {
		return &ce
	}

	var pe interface{ ToCustomError() CustomError }
	if errors.As(i.Err, &pe) {
		ce = pe.ToCustomError()
		return &ce
	}

	return nil
}

// JSONString renders the error in the format used by the Solana RPC API.
func (i InstructionError) JSONString() string {
	if ce := i.CustomError(); ce != nil {
		return fmt.Sprintf(`[%d, {"%s": %d}]`, i.Index, InstructionErrorCustom, int(*ce))
	}

	return fmt.Sprintf(`[%d, "%s"]`, i.Index, i.ErrorKey())
}

// TransactionError contains the transaction error details.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
		raw:              string(key),
	}
}

func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(err.JSONString()), &raw); err != nil {
		return nil, errors.Wrap(err, "failed to generate raw value")
	}

	return &TransactionError{
		transactionError: errors.New(string(TransactionErrorInstructionError)),
		instructionError: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): raw,
		},
	}, nil
}

func (t TransactionError) Error() string {
	if t.instructionError != nil {
		return t.instructionError.Error()
	}

	if t.transactionError != nil {
		return t.transactionError.Error()
	}

	return ""
}

func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return *t.instructionError
	}
	return nil
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}

	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}
