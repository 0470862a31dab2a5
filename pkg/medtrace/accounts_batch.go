package medtrace

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/solana"
)

// GetBatchAccountSize returns the slot capacity for a batch account whose id
// encodes to batchIdLen bytes, with room for MaxHistoryEntries ownership
// records.
func GetBatchAccountSize(batchIdLen int) int {
	return (4 + batchIdLen + // batch_id
		32 + // manufacturer
		32 + // current_owner
		8 + // created_at
		4 + MaxHistoryEntries*OwnershipRecordSize + // ownership_history
		1) // is_active
}

// BatchAccount is the persistent record stored in a batch slot.
type BatchAccount struct {
	BatchId          string
	Manufacturer     ed25519.PublicKey
	CurrentOwner     ed25519.PublicKey
	CreatedAt        int64
	OwnershipHistory []OwnershipRecord
	IsActive         bool
}

// NewBatchAccount returns the initial record for a batch created by
// manufacturer at createdAt.
func NewBatchAccount(batchId string, manufacturer ed25519.PublicKey, createdAt int64) *BatchAccount {
	return &BatchAccount{
		BatchId:      batchId,
		Manufacturer: manufacturer,
		CurrentOwner: manufacturer,
		CreatedAt:    createdAt,
		OwnershipHistory: []OwnershipRecord{
			{Owner: manufacturer, Timestamp: createdAt},
		},
		IsActive: true,
	}
}

// Size returns the exact encoded width of the account.
func (obj *BatchAccount) Size() int {
	return (4 + len(obj.BatchId) +
		32 +
		32 +
		8 +
		4 + len(obj.OwnershipHistory)*OwnershipRecordSize +
		1)
}

func (obj *BatchAccount) Marshal() []byte {
	data := make([]byte, obj.Size())

	var offset int

	putString(data, obj.BatchId, &offset)
	putKey(data, obj.Manufacturer, &offset)
	putKey(data, obj.CurrentOwner, &offset)
	putInt64(data, obj.CreatedAt, &offset)
	putUint32(data, uint32(len(obj.OwnershipHistory)), &offset)
	for _, record := range obj.OwnershipHistory {
		putOwnershipRecord(data, record, &offset)
	}
	putBool(data, obj.IsActive, &offset)

	return data
}

// Unmarshal decodes a batch account from the start of data. Bytes past the
// encoded record are slot padding and are ignored.
func (obj *BatchAccount) Unmarshal(data []byte) error {
	var offset int

	if err := getString(data, &obj.BatchId, &offset); err != nil {
		return errors.Wrap(err, "batch_id")
	}
	if err := getKey(data, &obj.Manufacturer, &offset); err != nil {
		return errors.Wrap(err, "manufacturer")
	}
	if err := getKey(data, &obj.CurrentOwner, &offset); err != nil {
		return errors.Wrap(err, "current_owner")
	}
	if err := getInt64(data, &obj.CreatedAt, &offset); err != nil {
		return errors.Wrap(err, "created_at")
	}

	var count uint32
	if err := getUint32(data, &count, &offset); err != nil {
		return errors.Wrap(err, "ownership_history")
	}
	if uint64(count)*OwnershipRecordSize > uint64(len(data)-offset) {
		return errors.Wrapf(ErrInvalidAccountData, "ownership history count %d exceeds data", count)
	}

	obj.OwnershipHistory = make([]OwnershipRecord, count)
	for i := range obj.OwnershipHistory {
		if err := getOwnershipRecord(data, &obj.OwnershipHistory[i], &offset); err != nil {
			return errors.Wrapf(err, "ownership_history[%d]", i)
		}
	}

	if err := getBool(data, &obj.IsActive, &offset); err != nil {
		return errors.Wrap(err, "is_active")
	}

	return nil
}

// Validate checks the record invariants that must hold after every
// successful transition.
func (obj *BatchAccount) Validate() error {
	if err := ValidateBatchId(obj.BatchId); err != nil {
		return err
	}
	if len(obj.Manufacturer) != ed25519.PublicKeySize || len(obj.CurrentOwner) != ed25519.PublicKeySize {
		return errors.Wrap(ErrInvalidAccountData, "invalid key length")
	}
	if len(obj.OwnershipHistory) == 0 {
		return errors.Wrap(ErrInvalidAccountData, "empty ownership history")
	}
	if len(obj.OwnershipHistory) > MaxHistoryEntries {
		return errors.Wrapf(ErrInvalidAccountData, "ownership history exceeds %d entries", MaxHistoryEntries)
	}

	first := obj.OwnershipHistory[0]
	if !bytes.Equal(first.Owner, obj.Manufacturer) || first.Timestamp != obj.CreatedAt {
		return errors.Wrap(ErrInvalidAccountData, "first ownership record is not the creation record")
	}

	last := obj.OwnershipHistory[len(obj.OwnershipHistory)-1]
	if !bytes.Equal(last.Owner, obj.CurrentOwner) {
		return errors.Wrap(ErrInvalidAccountData, "current owner does not match ownership history")
	}

	return nil
}

// ValidateBatchId checks that id is non-empty UTF-8 no longer than
// MaxBatchIdLength bytes.
func ValidateBatchId(id string) error {
	if len(id) == 0 {
		return errors.Wrap(ErrInvalidInstructionData, "empty batch id")
	}
	if len(id) > MaxBatchIdLength {
		return errors.Wrapf(ErrInvalidInstructionData, "batch id exceeds %d bytes", MaxBatchIdLength)
	}
	if !utf8.ValidString(id) {
		return errors.Wrap(ErrInvalidInstructionData, "batch id is not valid utf-8")
	}
	return nil
}

// Clone returns a deep copy of the account.
func (obj *BatchAccount) Clone() *BatchAccount {
	cloned := &BatchAccount{
		BatchId:          obj.BatchId,
		Manufacturer:     append(ed25519.PublicKey(nil), obj.Manufacturer...),
		CurrentOwner:     append(ed25519.PublicKey(nil), obj.CurrentOwner...),
		CreatedAt:        obj.CreatedAt,
		OwnershipHistory: make([]OwnershipRecord, len(obj.OwnershipHistory)),
		IsActive:         obj.IsActive,
	}
	for i, record := range obj.OwnershipHistory {
		cloned.OwnershipHistory[i] = OwnershipRecord{
			Owner:     append(ed25519.PublicKey(nil), record.Owner...),
			Timestamp: record.Timestamp,
		}
	}
	return cloned
}

func (obj *BatchAccount) String() string {
	history := make([]string, len(obj.OwnershipHistory))
	for i, record := range obj.OwnershipHistory {
		history[i] = record.String()
	}

	return fmt.Sprintf(
		"BatchAccount{batch_id=%s,manufacturer=%s,current_owner=%s,created_at=%s,ownership_history=[%s],is_active=%t}",
		obj.BatchId,
		base58.Encode(obj.Manufacturer),
		base58.Encode(obj.CurrentOwner),
		time.Unix(obj.CreatedAt, 0).UTC().String(),
		strings.Join(history, ","),
		obj.IsActive,
	)
}

// GetBatchAccount decodes a batch account fetched from the ledger, checking
// that the slot is owned by the batch program.
func GetBatchAccount(info *solana.AccountInfo) (*BatchAccount, error) {
	if !info.IsOwnedBy(PROGRAM_ID) {
		return nil, ErrInvalidProgram
	}

	var account BatchAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrap(ErrInvalidAccountData, err.Error())
	}
	return &account, nil
}
