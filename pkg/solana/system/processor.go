package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/solana"
)

// SystemError is a system program failure surfaced as a custom error code.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L17
type SystemError uint32

const (
	ErrAccountAlreadyInUse SystemError = iota
	ErrResultWithNegativeLamports
	ErrInvalidProgramID
	ErrInvalidAccountDataLength
)

func (e SystemError) Error() string {
	switch e {
	case ErrAccountAlreadyInUse:
		return "an account with the same address already exists"
	case ErrResultWithNegativeLamports:
		return "account does not have enough lamports to perform the operation"
	case ErrInvalidProgramID:
		return "cannot assign account to this program id"
	case ErrInvalidAccountDataLength:
		return "cannot allocate account data of this length"
	}
	return fmt.Sprintf("system error %d", uint32(e))
}

func (e SystemError) ToCustomError() solana.CustomError {
	return solana.CustomError(e)
}

// Program is the native system program. It allocates accounts and moves
// lamports between system owned accounts.
var Program solana.Program = solana.ProgramFunc(Process)

// Process executes a single system program instruction.
func Process(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return solana.ErrInvalidInstructionData
	}

	switch binary.LittleEndian.Uint32(data) {
	case commandCreateAccount:
		args, err := decodeCreateAccount(data)
		if err != nil {
			return errors.Wrap(solana.ErrInvalidInstructionData, err.Error())
		}
		return processCreateAccount(rt, accounts, args)
	case commandTransfer:
		lamports, err := decodeTransfer(data)
		if err != nil {
			return errors.Wrap(solana.ErrInvalidInstructionData, err.Error())
		}
		return processTransfer(rt, accounts, lamports)
	default:
		return solana.ErrInvalidInstructionData
	}
}

func processCreateAccount(rt solana.Runtime, accounts []*solana.AccountInfo, args *DecompiledCreateAccount) error {
	if len(accounts) < 2 {
		return solana.ErrNotEnoughAccountKeys
	}
	funder, to := accounts[0], accounts[1]

	if !funder.IsSigner {
		rt.Log("Create Account: funding account %s must sign", base58.Encode(funder.Key))
		return solana.ErrMissingRequiredSignature
	}
	if !to.IsSigner {
		rt.Log("Create Account: account %s must sign", base58.Encode(to.Key))
		return solana.ErrMissingRequiredSignature
	}
	if !to.IsUninitialized(SystemAccount) {
		rt.Log("Create Account: account %s already in use", base58.Encode(to.Key))
		return ErrAccountAlreadyInUse
	}
	if args.Size > MaxPermittedDataLength {
		rt.Log("Create Account: requested %d bytes, max is %d", args.Size, MaxPermittedDataLength)
		return ErrInvalidAccountDataLength
	}
	if len(args.Owner) != ed25519.PublicKeySize {
		return ErrInvalidProgramID
	}

	if err := debit(rt, funder, args.Lamports); err != nil {
		return err
	}
	to.Lamports += args.Lamports
	to.Data = make([]byte, args.Size)
	to.Owner = make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(to.Owner, args.Owner)

	return nil
}

func processTransfer(rt solana.Runtime, accounts []*solana.AccountInfo, lamports uint64) error {
	if len(accounts) < 2 {
		return solana.ErrNotEnoughAccountKeys
	}
	from, to := accounts[0], accounts[1]

	if !from.IsSigner {
		rt.Log("Transfer: from %s must sign", base58.Encode(from.Key))
		return solana.ErrMissingRequiredSignature
	}

	if lamports > MaxLamports || to.Lamports > MaxLamports-lamports {
		rt.Log("Transfer: balance of %s would exceed %d lamports", base58.Encode(to.Key), uint64(MaxLamports))
		return solana.ErrArithmeticOverflow
	}
	if err := debit(rt, from, lamports); err != nil {
		return err
	}
	to.Lamports += lamports

	return nil
}

func debit(rt solana.Runtime, from *solana.AccountInfo, lamports uint64) error {
	if len(from.Data) != 0 {
		rt.Log("Transfer: from %s must not carry data", base58.Encode(from.Key))
		return solana.ErrInvalidArgument
	}
	if from.Lamports < lamports {
		rt.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrResultWithNegativeLamports
	}

	from.Lamports -= lamports
	return nil
}
