package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/medweb3/medtrace/pkg/database/postgres"
	q "github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger/account"
)

const (
	tableName = "medtrace__core_account"
)

type model struct {
	Id            sql.NullInt64 `db:"id"`
	Address       string        `db:"address"`
	Owner         string        `db:"owner"`
	Lamports      int64         `db:"lamports"`
	Data          []byte        `db:"data"`
	Executable    bool          `db:"executable"`
	Slot          int64         `db:"slot"`
	CreatedAt     time.Time     `db:"created_at"`
	LastUpdatedAt time.Time     `db:"last_updated_at"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      int64(obj.Lamports),
		Data:          data,
		Executable:    obj.Executable,
		Slot:          int64(obj.Slot),
		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *account.Record {
	return &account.Record{
		Id:            uint64(obj.Id.Int64),
		Address:       obj.Address,
		Owner:         obj.Owner,
		Lamports:      uint64(obj.Lamports),
		Data:          obj.Data,
		Executable:    obj.Executable,
		Slot:          uint64(obj.Slot),
		CreatedAt:     obj.CreatedAt.UTC(),
		LastUpdatedAt: obj.LastUpdatedAt.UTC(),
	}
}

func (m *model) dbPut(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + tableName + `
		(address, owner, lamports, data, executable, slot, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)

		ON CONFLICT (address)
		DO UPDATE
			SET owner = $2, lamports = $3, data = $4, executable = $5, slot = $6, last_updated_at = $8
			WHERE ` + tableName + `.address = $1

		RETURNING id, address, owner, lamports, data, executable, slot, created_at, last_updated_at
	`

	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.LastUpdatedAt = now

	return tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Owner,
		m.Lamports,
		m.Data,
		m.Executable,
		m.Slot,
		m.CreatedAt,
		m.LastUpdatedAt,
	).StructScan(m)
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	var res model
	query := `SELECT id, address, owner, lamports, data, executable, slot, created_at, last_updated_at FROM ` + tableName + `
		WHERE address = $1
	`

	err := pgutil.ExecuteRetryable(func() error {
		return db.GetContext(ctx, &res, query, address)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	return &res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, req *q.QueryOptions) ([]*model, error) {
	var res []*model
	query := `SELECT id, address, owner, lamports, data, executable, slot, created_at, last_updated_at FROM ` + tableName + `
		WHERE (owner = $1)
	`

	query, args := q.PaginateQuery(query, []interface{}{owner}, req)

	err := pgutil.ExecuteRetryable(func() error {
		return db.SelectContext(ctx, &res, query, args...)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrAccountNotFound)
	}
	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}
