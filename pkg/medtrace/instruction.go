package medtrace

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Instruction is a decoded command envelope.
type Instruction struct {
	Type InstructionType

	// Set for InstructionTypeCreateBatch
	BatchId string

	// Set for InstructionTypeTransferOwnership
	NewOwner ed25519.PublicKey
}

// DecodeInstruction decodes a command envelope: a one byte discriminant
// followed by the command payload. Trailing bytes are rejected.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidInstructionData, "empty instruction data")
	}

	ix := &Instruction{Type: InstructionType(data[0])}
	offset := 1

	switch ix.Type {
	case InstructionTypeCreateBatch:
		if err := getString(data, &ix.BatchId, &offset); err != nil {
			return nil, errors.Wrapf(ErrInvalidInstructionData, "batch_id: %v", err)
		}
	case InstructionTypeTransferOwnership:
		if err := getKey(data, &ix.NewOwner, &offset); err != nil {
			return nil, errors.Wrapf(ErrInvalidInstructionData, "new_owner: %v", err)
		}
	case InstructionTypeVerifyBatch, InstructionTypeDeactivateBatch:
	default:
		return nil, errors.Wrapf(ErrInvalidInstructionData, "unknown instruction type %d", data[0])
	}

	if offset != len(data) {
		return nil, errors.Wrapf(ErrInvalidInstructionData, "%d trailing bytes", len(data)-offset)
	}

	return ix, nil
}

func (ix *Instruction) String() string {
	switch ix.Type {
	case InstructionTypeCreateBatch:
		return fmt.Sprintf("%s{batch_id=%s}", ix.Type, ix.BatchId)
	case InstructionTypeTransferOwnership:
		return fmt.Sprintf("%s{new_owner=%s}", ix.Type, base58.Encode(ix.NewOwner))
	}
	return ix.Type.String()
}
