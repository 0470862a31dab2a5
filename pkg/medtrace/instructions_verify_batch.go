package medtrace

import (
	"crypto/ed25519"

	"github.com/medweb3/medtrace/pkg/solana"
)

type VerifyBatchInstructionAccounts struct {
	Batch ed25519.PublicKey
}

func NewVerifyBatchInstruction(
	accounts *VerifyBatchInstructionAccounts,
) solana.Instruction {
	var offset int

	data := make([]byte, 1)
	putInstructionType(data, InstructionTypeVerifyBatch, &offset)

	return solana.Instruction{
		Program: PROGRAM_ADDRESS,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Batch,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}
