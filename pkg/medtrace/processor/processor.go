package processor

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/medtrace"
	"github.com/medweb3/medtrace/pkg/medtrace/auth"
	"github.com/medweb3/medtrace/pkg/medtrace/state"
	"github.com/medweb3/medtrace/pkg/solana"
	"github.com/medweb3/medtrace/pkg/solana/system"
)

// Program is the batch traceability program entrypoint.
var Program solana.Program = solana.ProgramFunc(Process)

// Process decodes a single command and runs its handler. Every precondition
// is checked before the batch slot is written, so a failed command leaves the
// slot untouched.
func Process(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo, data []byte) error {
	ix, err := medtrace.DecodeInstruction(data)
	if err != nil {
		rt.Log("Error: %v", err)
		return errors.Wrap(medtrace.ErrInvalidInstruction, err.Error())
	}

	rt.Log("Instruction: %s", ix.Type)

	switch ix.Type {
	case medtrace.InstructionTypeCreateBatch:
		err = processCreateBatch(rt, programID, accounts, ix.BatchId)
	case medtrace.InstructionTypeTransferOwnership:
		err = processTransferOwnership(rt, programID, accounts, ix.NewOwner)
	case medtrace.InstructionTypeVerifyBatch:
		err = processVerifyBatch(rt, programID, accounts)
	case medtrace.InstructionTypeDeactivateBatch:
		err = processDeactivateBatch(rt, programID, accounts)
	default:
		err = medtrace.ErrInvalidInstruction
	}

	if err != nil {
		rt.Log("Error: %v", err)
	}
	return err
}

// Accounts:
//  0. [WRITE, SIGNER] payer
//  1. [WRITE, SIGNER] new batch slot
//  2. [] system program
//  3. [] rent sysvar
//  4. [] clock sysvar
func processCreateBatch(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo, batchId string) error {
	if len(accounts) < 5 {
		return errors.Wrapf(medtrace.ErrNotEnoughAccounts, "create batch requires 5 accounts, got %d", len(accounts))
	}
	payer, slot, systemProgram, rentInfo, clockInfo := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if err := medtrace.ValidateBatchId(batchId); err != nil {
		return errors.Wrap(medtrace.ErrInvalidBatchId, err.Error())
	}
	if err := auth.SignedBy(payer); err != nil {
		return err
	}
	if err := auth.SignedBy(slot); err != nil {
		return err
	}
	if !slot.IsUninitialized(medtrace.SYSTEM_PROGRAM_ID) {
		return errors.Wrapf(medtrace.ErrSlotAlreadyInitialized, "slot %s", base58.Encode(slot.Key))
	}
	if !bytes.Equal(systemProgram.Key, medtrace.SYSTEM_PROGRAM_ID) {
		return errors.Wrapf(solana.ErrIncorrectProgramID, "expected system program, got %s", base58.Encode(systemProgram.Key))
	}

	rent, err := readRent(rentInfo)
	if err != nil {
		return err
	}
	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}

	capacity := state.CapacityFor(len(batchId))
	lamports := rent.MinimumBalance(uint64(capacity))

	err = rt.Invoke(
		system.CreateAccount(payer.Key, slot.Key, programID, lamports, uint64(capacity)),
		payer,
		slot,
		systemProgram,
	)
	if err != nil {
		return err
	}

	manufacturer := append(ed25519.PublicKey(nil), payer.Key...)
	record := medtrace.NewBatchAccount(batchId, manufacturer, clock.UnixTimestamp)
	if err := state.Write(slot, record); err != nil {
		return err
	}

	rt.Log(
		"Batch created: batch_id=%s, manufacturer=%s, slot=%s, created_at=%d, lamports=%d, space=%d",
		record.BatchId,
		base58.Encode(record.Manufacturer),
		base58.Encode(slot.Key),
		record.CreatedAt,
		lamports,
		capacity,
	)
	return nil
}

// Accounts:
//  0. [SIGNER] current owner
//  1. [WRITE] batch slot
//  2. [] clock sysvar
func processTransferOwnership(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo, newOwner ed25519.PublicKey) error {
	if len(accounts) < 3 {
		return errors.Wrapf(medtrace.ErrNotEnoughAccounts, "transfer ownership requires 3 accounts, got %d", len(accounts))
	}
	owner, slot, clockInfo := accounts[0], accounts[1], accounts[2]

	if err := auth.IsProgramOwned(programID, slot); err != nil {
		return err
	}
	if err := auth.SignedBy(owner); err != nil {
		return err
	}

	clock, err := readClock(clockInfo)
	if err != nil {
		return err
	}

	record, err := state.Read(slot)
	if err != nil {
		return err
	}
	if err := auth.MatchesCurrentOwner(record, owner.Key); err != nil {
		return err
	}
	if err := auth.IsActive(record); err != nil {
		return err
	}
	if len(record.OwnershipHistory) >= medtrace.MaxHistoryEntries {
		return errors.Wrapf(medtrace.ErrCapacityExceeded, "ownership history is limited to %d entries", medtrace.MaxHistoryEntries)
	}

	previous := record.CurrentOwner
	record.OwnershipHistory = append(record.OwnershipHistory, medtrace.OwnershipRecord{
		Owner:     newOwner,
		Timestamp: clock.UnixTimestamp,
	})
	record.CurrentOwner = newOwner

	if err := state.Write(slot, record); err != nil {
		return err
	}

	rt.Log(
		"Ownership transferred: batch_id=%s, from=%s, to=%s, timestamp=%d, history_len=%d",
		record.BatchId,
		base58.Encode(previous),
		base58.Encode(newOwner),
		clock.UnixTimestamp,
		len(record.OwnershipHistory),
	)
	return nil
}

// Accounts:
//  0. [] batch slot
func processVerifyBatch(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo) error {
	if len(accounts) < 1 {
		return errors.Wrap(medtrace.ErrNotEnoughAccounts, "verify batch requires 1 account")
	}
	slot := accounts[0]

	if err := auth.IsProgramOwned(programID, slot); err != nil {
		return err
	}

	record, err := state.Read(slot)
	if err != nil {
		return err
	}

	rt.Log(
		"Batch verified: batch_id=%s, manufacturer=%s, current_owner=%s, created_at=%d, is_active=%t, history_len=%d",
		record.BatchId,
		base58.Encode(record.Manufacturer),
		base58.Encode(record.CurrentOwner),
		record.CreatedAt,
		record.IsActive,
		len(record.OwnershipHistory),
	)
	for i, entry := range record.OwnershipHistory {
		rt.Log("History[%d]: owner=%s, timestamp=%d", i, base58.Encode(entry.Owner), entry.Timestamp)
	}
	return nil
}

// Accounts:
//  0. [SIGNER] current owner
//  1. [WRITE] batch slot
func processDeactivateBatch(rt solana.Runtime, programID ed25519.PublicKey, accounts []*solana.AccountInfo) error {
	if len(accounts) < 2 {
		return errors.Wrapf(medtrace.ErrNotEnoughAccounts, "deactivate batch requires 2 accounts, got %d", len(accounts))
	}
	owner, slot := accounts[0], accounts[1]

	if err := auth.IsProgramOwned(programID, slot); err != nil {
		return err
	}
	if err := auth.SignedBy(owner); err != nil {
		return err
	}

	record, err := state.Read(slot)
	if err != nil {
		return err
	}
	if err := auth.MatchesCurrentOwner(record, owner.Key); err != nil {
		return err
	}
	if err := auth.IsActive(record); err != nil {
		return err
	}

	record.IsActive = false
	if err := state.Write(slot, record); err != nil {
		return err
	}

	rt.Log("Batch deactivated: batch_id=%s, owner=%s", record.BatchId, base58.Encode(owner.Key))
	return nil
}

func readRent(info *solana.AccountInfo) (*system.RentAccount, error) {
	if !bytes.Equal(info.Key, medtrace.SYSVAR_RENT_PUBKEY) {
		return nil, errors.Wrapf(medtrace.ErrInvalidOracle, "expected rent sysvar, got %s", base58.Encode(info.Key))
	}

	var rent system.RentAccount
	if err := rent.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrapf(medtrace.ErrInvalidOracle, "rent sysvar: %v", err)
	}
	return &rent, nil
}

func readClock(info *solana.AccountInfo) (*system.ClockAccount, error) {
	if !bytes.Equal(info.Key, medtrace.SYSVAR_CLOCK_PUBKEY) {
		return nil, errors.Wrapf(medtrace.ErrInvalidOracle, "expected clock sysvar, got %s", base58.Encode(info.Key))
	}

	var clock system.ClockAccount
	if err := clock.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrapf(medtrace.ErrInvalidOracle, "clock sysvar: %v", err)
	}
	return &clock, nil
}
