package medtrace

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

const (
	OwnershipRecordSize = (32 + // owner
		8) // timestamp
)

// OwnershipRecord is a single link in a batch's chain of custody.
type OwnershipRecord struct {
	Owner     ed25519.PublicKey
	Timestamp int64
}

func (obj OwnershipRecord) String() string {
	return fmt.Sprintf(
		"OwnershipRecord{owner=%s,timestamp=%s}",
		base58.Encode(obj.Owner),
		time.Unix(obj.Timestamp, 0).UTC().String(),
	)
}

func putOwnershipRecord(dst []byte, v OwnershipRecord, offset *int) {
	putKey(dst, v.Owner, offset)
	putInt64(dst, v.Timestamp, offset)
}

func getOwnershipRecord(src []byte, dst *OwnershipRecord, offset *int) error {
	if err := getKey(src, &dst.Owner, offset); err != nil {
		return err
	}
	return getInt64(src, &dst.Timestamp, offset)
}
