package leveldb

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/ledger/account"
	solbin "github.com/medweb3/medtrace/pkg/solana/binary"
)

var (
	accountPrefix = []byte("a:")
	ownerPrefix   = []byte("o:")
	lastIdKey     = []byte("m:last_id")
)

const fixedModelSize = 8 + 4 + 4 + 8 + 4 + 1 + 8 + 8 + 8

func accountKey(address string) []byte {
	return append(append([]byte{}, accountPrefix...), address...)
}

// ownerIndexPrefix is o:<owner>\x00, followed by the big endian record id so
// that index entries iterate in id order.
func ownerIndexPrefix(owner string) []byte {
	key := append(append([]byte{}, ownerPrefix...), owner...)
	return append(key, 0)
}

func ownerIndexKey(owner string, id uint64) []byte {
	key := ownerIndexPrefix(owner)
	return binary.BigEndian.AppendUint64(key, id)
}

func marshalRecord(r *account.Record) []byte {
	b := make([]byte, fixedModelSize+len(r.Address)+len(r.Owner)+len(r.Data))

	var offset int
	solbin.PutUint64(b, r.Id, &offset)
	putString(b, r.Address, &offset)
	putString(b, r.Owner, &offset)
	solbin.PutUint64(b, r.Lamports, &offset)
	putString(b, string(r.Data), &offset)
	solbin.PutBool(b, r.Executable, &offset)
	solbin.PutUint64(b, r.Slot, &offset)
	solbin.PutInt64(b, r.CreatedAt.UnixNano(), &offset)
	solbin.PutInt64(b, r.LastUpdatedAt.UnixNano(), &offset)
	return b
}

func unmarshalRecord(b []byte) (*account.Record, error) {
	var r account.Record
	var data string
	var createdAt, lastUpdatedAt int64

	var offset int
	for _, step := range []func() error{
		func() error { return solbin.GetUint64(b, &r.Id, &offset) },
		func() error { return getString(b, &r.Address, &offset) },
		func() error { return getString(b, &r.Owner, &offset) },
		func() error { return solbin.GetUint64(b, &r.Lamports, &offset) },
		func() error { return getString(b, &data, &offset) },
		func() error { return solbin.GetBool(b, &r.Executable, &offset) },
		func() error { return solbin.GetUint64(b, &r.Slot, &offset) },
		func() error { return solbin.GetInt64(b, &createdAt, &offset) },
		func() error { return solbin.GetInt64(b, &lastUpdatedAt, &offset) },
	} {
		if err := step(); err != nil {
			return nil, errors.Wrap(err, "corrupt account record")
		}
	}

	r.Data = []byte(data)
	r.CreatedAt = time.Unix(0, createdAt)
	r.LastUpdatedAt = time.Unix(0, lastUpdatedAt)
	return &r, nil
}

func putString(dst []byte, v string, offset *int) {
	solbin.PutUint32(dst, uint32(len(v)), offset)
	solbin.PutBytes(dst, []byte(v), offset)
}

func getString(src []byte, dst *string, offset *int) error {
	var length uint32
	if err := solbin.GetUint32(src, &length, offset); err != nil {
		return err
	}

	var raw []byte
	if err := solbin.GetBytes(src, &raw, int(length), offset); err != nil {
		return err
	}
	*dst = string(raw)
	return nil
}
