package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medweb3/medtrace/pkg/database/query"
	"github.com/medweb3/medtrace/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testHappyPath,
		testBatchSave,
		testInvalidBatch,
		testGetAllByOwner,
		testGetAllByOwnerPaging,
		testEmptyData,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s account.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		_, err := s.Get(ctx, "address")
		assert.Equal(t, account.ErrAccountNotFound, err)

		record := &account.Record{
			Address:  "address",
			Owner:    "owner",
			Lamports: 1_000_000,
			Data:     []byte{1, 2, 3},
			Slot:     1,
		}
		cloned := record.Clone()

		require.NoError(t, s.Save(ctx, record))
		assert.True(t, record.Id > 0)

		actual, err := s.Get(ctx, "address")
		require.NoError(t, err)
		assert.True(t, actual.Id > 0)
		assert.True(t, actual.CreatedAt.After(start))
		assert.True(t, actual.LastUpdatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		updateTime := time.Now()
		time.Sleep(time.Millisecond)

		record.Owner = "program"
		record.Lamports = 5
		record.Data = []byte{4, 5, 6, 7}
		record.Executable = true
		record.Slot = 2
		cloned = record.Clone()
		require.NoError(t, s.Save(ctx, record))

		actual, err = s.Get(ctx, "address")
		require.NoError(t, err)
		assert.True(t, actual.CreatedAt.Before(updateTime))
		assert.True(t, actual.LastUpdatedAt.After(updateTime))
		assertEquivalentRecords(t, &cloned, actual)

		// Mutating the returned record doesn't affect the store
		actual.Data[0] = 0xff
		actual, err = s.Get(ctx, "address")
		require.NoError(t, err)
		assert.EqualValues(t, 4, actual.Data[0])
	})
}

func testBatchSave(t *testing.T, s account.Store) {
	t.Run("testBatchSave", func(t *testing.T) {
		ctx := context.Background()

		var records []*account.Record
		for i := 0; i < 5; i++ {
			records = append(records, &account.Record{
				Address:  fmt.Sprintf("address%d", i),
				Owner:    "owner",
				Lamports: uint64(i),
				Data:     []byte{byte(i)},
				Slot:     10,
			})
		}
		require.NoError(t, s.Save(ctx, records...))

		for _, expected := range records {
			actual, err := s.Get(ctx, expected.Address)
			require.NoError(t, err)
			assertEquivalentRecords(t, expected, actual)
		}
	})
}

func testInvalidBatch(t *testing.T, s account.Store) {
	t.Run("testInvalidBatch", func(t *testing.T) {
		ctx := context.Background()

		valid := &account.Record{Address: "valid", Owner: "owner", Lamports: 1}
		invalid := &account.Record{Address: "invalid"}

		assert.Error(t, s.Save(ctx, valid, invalid))

		_, err := s.Get(ctx, "valid")
		assert.Equal(t, account.ErrAccountNotFound, err)
		_, err = s.Get(ctx, "invalid")
		assert.Equal(t, account.ErrAccountNotFound, err)

		overflow := &account.Record{Address: "overflow", Owner: "owner", Lamports: account.MaxLamports + 1}
		assert.ErrorIs(t, s.Save(ctx, valid, overflow), account.ErrValueOutOfRange)
		_, err = s.Get(ctx, "overflow")
		assert.Equal(t, account.ErrAccountNotFound, err)

		largest := &account.Record{Address: "largest", Owner: "owner", Lamports: account.MaxLamports}
		require.NoError(t, s.Save(ctx, largest))
		actual, err := s.Get(ctx, "largest")
		require.NoError(t, err)
		assert.EqualValues(t, account.MaxLamports, actual.Lamports)
	})
}

func testGetAllByOwner(t *testing.T, s account.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "program")
		assert.Equal(t, account.ErrAccountNotFound, err)

		require.NoError(t, s.Save(
			ctx,
			&account.Record{Address: "c", Owner: "program", Data: []byte{3}},
			&account.Record{Address: "a", Owner: "program", Data: []byte{1}},
			&account.Record{Address: "b", Owner: "system"},
		))

		actual, err := s.GetAllByOwner(ctx, "program")
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, "c", actual[0].Address)
		assert.Equal(t, "a", actual[1].Address)

		// Reassigning ownership moves the account between owners
		record, err := s.Get(ctx, "c")
		require.NoError(t, err)
		record.Owner = "system"
		require.NoError(t, s.Save(ctx, record))

		actual, err = s.GetAllByOwner(ctx, "program")
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, "a", actual[0].Address)

		actual, err = s.GetAllByOwner(ctx, "system")
		require.NoError(t, err)
		assert.Len(t, actual, 2)
	})
}

func testGetAllByOwnerPaging(t *testing.T, s account.Store) {
	t.Run("testGetAllByOwnerPaging", func(t *testing.T) {
		ctx := context.Background()

		var expected []string
		for i := 0; i < 10; i++ {
			record := &account.Record{Address: fmt.Sprintf("slot%d", i), Owner: "program"}
			require.NoError(t, s.Save(ctx, record))
			expected = append(expected, record.Address)
		}

		actual, err := s.GetAllByOwner(ctx, "program", query.WithLimit(4))
		require.NoError(t, err)
		require.Len(t, actual, 4)
		for i, record := range actual {
			assert.Equal(t, expected[i], record.Address)
		}

		actual, err = s.GetAllByOwner(ctx, "program", query.WithLimit(4), query.WithCursor(query.ToCursor(actual[3].Id)))
		require.NoError(t, err)
		require.Len(t, actual, 4)
		for i, record := range actual {
			assert.Equal(t, expected[i+4], record.Address)
		}

		actual, err = s.GetAllByOwner(ctx, "program", query.WithDirection(query.Descending))
		require.NoError(t, err)
		require.Len(t, actual, 10)
		for i, record := range actual {
			assert.Equal(t, expected[9-i], record.Address)
		}

		_, err = s.GetAllByOwner(ctx, "program", query.WithCursor(query.ToCursor(actual[0].Id)))
		assert.Equal(t, account.ErrAccountNotFound, err)
	})
}

func testEmptyData(t *testing.T, s account.Store) {
	t.Run("testEmptyData", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, &account.Record{Address: "wallet", Owner: "system", Lamports: 10}))

		actual, err := s.Get(ctx, "wallet")
		require.NoError(t, err)
		assert.Empty(t, actual.Data)
		assert.EqualValues(t, 10, actual.Lamports)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *account.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Lamports, obj2.Lamports)
	assert.Equal(t, obj1.Data, obj2.Data)
	assert.Equal(t, obj1.Executable, obj2.Executable)
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
