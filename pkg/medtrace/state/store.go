package state

import (
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/medtrace"
	"github.com/medweb3/medtrace/pkg/solana"
)

// CapacityFor returns the number of bytes to allocate for a batch slot whose
// id encodes to batchIdLen bytes.
func CapacityFor(batchIdLen int) int {
	return medtrace.GetBatchAccountSize(batchIdLen)
}

// Read decodes the batch account held in slot.
func Read(slot *solana.AccountInfo) (*medtrace.BatchAccount, error) {
	var record medtrace.BatchAccount
	if err := record.Unmarshal(slot.Data); err != nil {
		return nil, errors.Wrap(medtrace.ErrInvalidSlotData, err.Error())
	}
	return &record, nil
}

// Write re-encodes record into slot. The slot is either fully replaced, with
// any remaining capacity zeroed, or left untouched.
func Write(slot *solana.AccountInfo, record *medtrace.BatchAccount) error {
	encoded := record.Marshal()

	data, release, err := slot.BorrowMutData()
	defer release()
	if err != nil {
		return err
	}

	if len(encoded) > len(data) {
		return errors.Wrapf(medtrace.ErrCapacityExceeded, "record is %d bytes, slot holds %d", len(encoded), len(data))
	}

	n := copy(data, encoded)
	for i := n; i < len(data); i++ {
		data[i] = 0
	}

	return nil
}
