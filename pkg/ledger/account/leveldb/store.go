package leveldb

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger/account"
)

type store struct {
	db *leveldb.DB

	// writeMu serializes Save so id allocation and index maintenance observe a
	// consistent view of the database.
	writeMu sync.Mutex
}

// Open returns a leveldb-backed account.Store persisted under path. The
// returned close func releases the underlying database.
func Open(path string) (account.Store, func() error, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error opening leveldb at %s", path)
	}
	return &store{db: db}, db.Close, nil
}

// OpenInMemory returns a leveldb-backed account.Store that lives only in memory
func OpenInMemory() (account.Store, func() error, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error opening in memory leveldb")
	}
	return &store{db: db}, db.Close, nil
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	return s.get(address)
}

// Save implements account.Store.Save
func (s *store) Save(_ context.Context, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lastId, err := s.lastId()
	if err != nil {
		return err
	}

	now := time.Now()
	batch := new(leveldb.Batch)
	pending := make(map[string]*account.Record)
	saved := make([]*account.Record, len(records))

	for i, record := range records {
		existing, ok := pending[record.Address]
		if !ok {
			existing, err = s.get(record.Address)
			if err != nil && err != account.ErrAccountNotFound {
				return err
			}
		}

		cloned := record.Clone()
		if existing != nil {
			batch.Delete(ownerIndexKey(existing.Owner, existing.Id))
			cloned.Id = existing.Id
			cloned.CreatedAt = existing.CreatedAt
		} else {
			lastId++
			cloned.Id = lastId
			cloned.CreatedAt = now
		}
		cloned.LastUpdatedAt = now

		batch.Put(accountKey(cloned.Address), marshalRecord(&cloned))
		batch.Put(ownerIndexKey(cloned.Owner, cloned.Id), []byte(cloned.Address))

		pending[cloned.Address] = &cloned
		saved[i] = &cloned
	}
	batch.Put(lastIdKey, binary.BigEndian.AppendUint64(nil, lastId))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "error writing account batch")
	}

	for i, record := range saved {
		record.CopyTo(records[i])
	}
	return nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, opts ...query.Option) ([]*account.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	prefix := ownerIndexPrefix(owner)
	searchRange := util.BytesPrefix(prefix)
	if len(req.Cursor) > 0 {
		cursorKey := ownerIndexKey(owner, req.Cursor.ToUint64())
		if req.SortBy == query.Ascending {
			searchRange.Start = append(cursorKey, 0)
		} else {
			searchRange.Limit = cursorKey
		}
	}

	iter := s.db.NewIterator(searchRange, nil)
	defer iter.Release()

	var res []*account.Record
	for ok := first(iter, req.SortBy); ok; ok = next(iter, req.SortBy) {
		record, err := s.get(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		res = append(res, record)

		if req.Limit > 0 && uint64(len(res)) >= req.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "error iterating owner index")
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}

func (s *store) get(address string) (*account.Record, error) {
	value, err := s.db.Get(accountKey(address), nil)
	if err == leveldb.ErrNotFound {
		return nil, account.ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "error getting account %s", address)
	}
	return unmarshalRecord(value)
}

func (s *store) lastId() (uint64, error) {
	value, err := s.db.Get(lastIdKey, nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrap(err, "error getting last account id")
	}
	return binary.BigEndian.Uint64(value), nil
}

func (s *store) reset() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	return s.db.Write(batch, nil)
}

func first(iter iterator.Iterator, direction query.Ordering) bool {
	if direction == query.Descending {
		return iter.Last()
	}
	return iter.First()
}

func next(iter iterator.Iterator, direction query.Ordering) bool {
	if direction == query.Descending {
		return iter.Prev()
	}
	return iter.Next()
}
