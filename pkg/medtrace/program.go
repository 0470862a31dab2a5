package medtrace

import (
	"crypto/ed25519"
	"errors"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("7e1SU615mkoWoQsx2HxxujKj9tU8QRF1hHD8gUiWuvWQ")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID   = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
	SYSVAR_RENT_PUBKEY  = ed25519.PublicKey(mustBase58Decode("SysvarRent111111111111111111111111111111111"))
	SYSVAR_CLOCK_PUBKEY = ed25519.PublicKey(mustBase58Decode("SysvarC1ock11111111111111111111111111111111"))
)

const (
	// MaxHistoryEntries is the number of ownership records reserved in every
	// batch account. Transfers past this bound fail.
	MaxHistoryEntries = 10

	// MaxBatchIdLength bounds the UTF-8 encoded batch id.
	MaxBatchIdLength = 64
)
