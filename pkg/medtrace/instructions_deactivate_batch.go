package medtrace

import (
	"crypto/ed25519"

	"github.com/medweb3/medtrace/pkg/solana"
)

type DeactivateBatchInstructionAccounts struct {
	CurrentOwner ed25519.PublicKey
	Batch        ed25519.PublicKey
}

func NewDeactivateBatchInstruction(
	accounts *DeactivateBatchInstructionAccounts,
) solana.Instruction {
	var offset int

	data := make([]byte, 1)
	putInstructionType(data, InstructionTypeDeactivateBatch, &offset)

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
		},
	}
}
