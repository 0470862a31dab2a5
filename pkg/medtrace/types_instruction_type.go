package medtrace

import "fmt"

type InstructionType uint8

const (
	InstructionTypeCreateBatch InstructionType = iota
	InstructionTypeTransferOwnership
	InstructionTypeVerifyBatch
	InstructionTypeDeactivateBatch
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeCreateBatch:
		return "CreateBatch"
	case InstructionTypeTransferOwnership:
		return "TransferOwnership"
	case InstructionTypeVerifyBatch:
		return "VerifyBatch"
	case InstructionTypeDeactivateBatch:
		return "DeactivateBatch"
	}
	return fmt.Sprintf("InstructionType(%d)", uint8(t))
}

func putInstructionType(dst []byte, v InstructionType, offset *int) {
	dst[*offset] = uint8(v)
	*offset += 1
}
