package account

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/medweb3/medtrace/pkg/database/query"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrValueOutOfRange = errors.New("value out of range")
)

// MaxLamports is the largest balance every store can persist. Postgres keeps
// balances in a signed 64-bit column.
const MaxLamports = math.MaxInt64

// Record is the persisted state of a single ledger account. Address and Owner
// are base58 encoded public keys.
type Record struct {
	Id uint64

	Address    string
	Owner      string
	Lamports   uint64
	Data       []byte
	Executable bool

	// Slot is the ledger slot of the transaction that last modified the account
	Slot uint64

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

type Store interface {
	// Get gets the account at address
	//
	// ErrAccountNotFound is returned when the account doesn't exist
	Get(ctx context.Context, address string) (*Record, error)

	// Save upserts every record in a single atomic batch. Either all records
	// are persisted or none are.
	Save(ctx context.Context, records ...*Record) error

	// GetAllByOwner gets a page of accounts owned by owner, ordered by record
	// id. Supports query.WithLimit, query.WithCursor and query.WithDirection.
	//
	// ErrAccountNotFound is returned when the page is empty
	GetAllByOwner(ctx context.Context, owner string, opts ...query.Option) ([]*Record, error)
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if r.Lamports > MaxLamports || r.Slot > math.MaxInt64 {
		return ErrValueOutOfRange
	}

	return nil
}

func (r *Record) Clone() Record {
	var data []byte
	if r.Data != nil {
		data = make([]byte, len(r.Data))
		copy(data, r.Data)
	}

	return Record{
		Id:            r.Id,
		Address:       r.Address,
		Owner:         r.Owner,
		Lamports:      r.Lamports,
		Data:          data,
		Executable:    r.Executable,
		Slot:          r.Slot,
		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	cloned := r.Clone()
	*dst = cloned
}
