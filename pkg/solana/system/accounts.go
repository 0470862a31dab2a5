package system

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/solana/binary"
)

const (
	RentAccountSize  = 8 + 8 + 1
	ClockAccountSize = 8 + 8 + 8 + 8 + 8

	// AccountStorageOverhead is the number of bytes of per-account metadata
	// charged for in addition to the account data.
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L27
	AccountStorageOverhead = 128
)

var (
	ErrInvalidAccountSize = errors.New("invalid sysvar account size")
	ErrInvalidRent        = errors.New("invalid rent parameters")
)

// RentAccount holds the rent sysvar pricing parameters.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L9
type RentAccount struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent mirrors the mainnet rent parameters.
var DefaultRent = RentAccount{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2.0,
	BurnPercent:         50,
}

func (obj RentAccount) Marshal() []byte {
	res := make([]byte, RentAccountSize)

	var offset int
	binary.PutUint64(res, obj.LamportsPerByteYear, &offset)
	binary.PutFloat64(res, obj.ExemptionThreshold, &offset)
	binary.PutUint8(res, obj.BurnPercent, &offset)

	return res
}

func (obj *RentAccount) Unmarshal(data []byte) error {
	if len(data) != RentAccountSize {
		return ErrInvalidAccountSize
	}

	var offset int
	if err := binary.GetUint64(data, &obj.LamportsPerByteYear, &offset); err != nil {
		return err
	}
	if err := binary.GetFloat64(data, &obj.ExemptionThreshold, &offset); err != nil {
		return err
	}
	if err := binary.GetUint8(data, &obj.BurnPercent, &offset); err != nil {
		return err
	}

	return obj.Validate()
}

func (obj RentAccount) Validate() error {
	if math.IsNaN(obj.ExemptionThreshold) || math.IsInf(obj.ExemptionThreshold, 0) || obj.ExemptionThreshold < 0 {
		return errors.Wrapf(ErrInvalidRent, "exemption threshold %v", obj.ExemptionThreshold)
	}
	if obj.BurnPercent > 100 {
		return errors.Wrapf(ErrInvalidRent, "burn percent %d", obj.BurnPercent)
	}
	return nil
}

// MinimumBalance returns the lamports an account of the given data size needs
// to be rent exempt.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L60
func (obj RentAccount) MinimumBalance(size uint64) uint64 {
	bytes := AccountStorageOverhead + size
	return uint64(float64(bytes*obj.LamportsPerByteYear) * obj.ExemptionThreshold)
}

func (obj RentAccount) String() string {
	return fmt.Sprintf(
		"RentAccount{lamports_per_byte_year=%d,exemption_threshold=%v,burn_percent=%d}",
		obj.LamportsPerByteYear,
		obj.ExemptionThreshold,
		obj.BurnPercent,
	)
}

// ClockAccount holds the clock sysvar.
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/clock.rs#L80
type ClockAccount struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (obj ClockAccount) Marshal() []byte {
	res := make([]byte, ClockAccountSize)

	var offset int
	binary.PutUint64(res, obj.Slot, &offset)
	binary.PutInt64(res, obj.EpochStartTimestamp, &offset)
	binary.PutUint64(res, obj.Epoch, &offset)
	binary.PutUint64(res, obj.LeaderScheduleEpoch, &offset)
	binary.PutInt64(res, obj.UnixTimestamp, &offset)

	return res
}

func (obj *ClockAccount) Unmarshal(data []byte) error {
	if len(data) != ClockAccountSize {
		return ErrInvalidAccountSize
	}

	var offset int
	if err := binary.GetUint64(data, &obj.Slot, &offset); err != nil {
		return err
	}
	if err := binary.GetInt64(data, &obj.EpochStartTimestamp, &offset); err != nil {
		return err
	}
	if err := binary.GetUint64(data, &obj.Epoch, &offset); err != nil {
		return err
	}
	if err := binary.GetUint64(data, &obj.LeaderScheduleEpoch, &offset); err != nil {
		return err
	}
	return binary.GetInt64(data, &obj.UnixTimestamp, &offset)
}

func (obj ClockAccount) String() string {
	return fmt.Sprintf(
		"ClockAccount{slot=%d,epoch=%d,unix_timestamp=%d}",
		obj.Slot,
		obj.Epoch,
		obj.UnixTimestamp,
	)
}
