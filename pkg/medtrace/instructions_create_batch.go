package medtrace

import (
	"crypto/ed25519"

	"github.com/medweb3/medtrace/pkg/solana"
)

type CreateBatchInstructionArgs struct {
	BatchId string
}

type CreateBatchInstructionAccounts struct {
	Payer    ed25519.PublicKey
	NewBatch ed25519.PublicKey
}

func NewCreateBatchInstruction(
	accounts *CreateBatchInstructionAccounts,
	args *CreateBatchInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1+4+len(args.BatchId))

	putInstructionType(data, InstructionTypeCreateBatch, &offset)
	putString(data, args.BatchId, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.NewBatch,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSVAR_RENT_PUBKEY,
				IsWritable: false,
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
