package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger/account"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records map[string]*account.Record
}

// New returns a new in memory account.Store
func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[address]
	if !ok {
		return nil, account.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Save implements account.Store.Save
func (s *store) Save(_ context.Context, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, record := range records {
		if item, ok := s.records[record.Address]; ok {
			item.Owner = record.Owner
			item.Lamports = record.Lamports
			item.Data = append([]byte(nil), record.Data...)
			item.Executable = record.Executable
			item.Slot = record.Slot
			item.LastUpdatedAt = now

			item.CopyTo(record)
			continue
		}

		s.last++
		record.Id = s.last
		record.CreatedAt = now
		record.LastUpdatedAt = now

		cloned := record.Clone()
		s.records[record.Address] = &cloned
	}

	return nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, opts ...query.Option) ([]*account.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*account.Record
	for _, item := range s.records {
		if item.Owner == owner {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if req.SortBy == query.Descending {
			return items[i].Id > items[j].Id
		}
		return items[i].Id < items[j].Id
	})

	var res []*account.Record
	for _, item := range items {
		if len(req.Cursor) > 0 {
			cursor := req.Cursor.ToUint64()
			if req.SortBy == query.Ascending && item.Id <= cursor {
				continue
			}
			if req.SortBy == query.Descending && item.Id >= cursor {
				continue
			}
		}

		cloned := item.Clone()
		res = append(res, &cloned)

		if req.Limit > 0 && uint64(len(res)) >= req.Limit {
			break
		}
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = make(map[string]*account.Record)
}
