package medtrace

import (
	"crypto/ed25519"

	"github.com/medweb3/medtrace/pkg/solana"
)

const (
	TransferOwnershipInstructionArgsSize = 32 // new_owner
)

type TransferOwnershipInstructionArgs struct {
	NewOwner ed25519.PublicKey
}

type TransferOwnershipInstructionAccounts struct {
	CurrentOwner ed25519.PublicKey
	Batch        ed25519.PublicKey
}

func NewTransferOwnershipInstruction(
	accounts *TransferOwnershipInstructionAccounts,
	args *TransferOwnershipInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1+TransferOwnershipInstructionArgsSize)

	putInstructionType(data, InstructionTypeTransferOwnership, &offset)
	putKey(data, args.NewOwner, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.CurrentOwner,
				IsWritable: false,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Batch,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_CLOCK_PUBKEY,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
