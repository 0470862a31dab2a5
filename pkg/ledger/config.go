package ledger

import (
	"context"

	"github.com/pkg/errors"

	"github.com/medweb3/medtrace/pkg/config"
	"github.com/medweb3/medtrace/pkg/config/env"
	"github.com/medweb3/medtrace/pkg/config/memory"
	"github.com/medweb3/medtrace/pkg/pointer"
	"github.com/medweb3/medtrace/pkg/solana/system"
)

const (
	envConfigPrefix = "MEDTRACE_"

	RentLamportsPerByteYearConfigEnvName = envConfigPrefix + "RENT_LAMPORTS_PER_BYTE_YEAR"
	defaultRentLamportsPerByteYear       = 3480

	RentExemptionThresholdConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_THRESHOLD"
	defaultRentExemptionThreshold       = 2.0

	RentBurnPercentConfigEnvName = envConfigPrefix + "RENT_BURN_PERCENT"
	defaultRentBurnPercent       = 50

	LamportsPerSignatureConfigEnvName = envConfigPrefix + "LAMPORTS_PER_SIGNATURE"
	defaultLamportsPerSignature       = 5000

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 64

	StatusCacheSizeConfigEnvName = envConfigPrefix + "STATUS_CACHE_SIZE"
	defaultStatusCacheSize       = 10_000

	MaxRecentBlockhashesConfigEnvName = envConfigPrefix + "MAX_RECENT_BLOCKHASHES"
	defaultMaxRecentBlockhashes       = 150

	AirdropsPerSecondConfigEnvName = envConfigPrefix + "AIRDROPS_PER_SECOND"
	defaultAirdropsPerSecond       = 0

	DebugLogsConfigEnvName = envConfigPrefix + "DEBUG_LOGS"
	defaultDebugLogs       = false
)

type conf struct {
	rentLamportsPerByteYear config.Uint64
	rentExemptionThreshold  config.Float64
	rentBurnPercent         config.Uint64
	lamportsPerSignature    config.Uint64
	lockStripes             config.Uint64
	statusCacheSize         config.Uint64
	maxRecentBlockhashes    config.Uint64
	airdropsPerSecond       config.Float64
	debugLogs               config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			rentLamportsPerByteYear: env.NewUint64Config(RentLamportsPerByteYearConfigEnvName, defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  env.NewFloat64Config(RentExemptionThresholdConfigEnvName, defaultRentExemptionThreshold),
			rentBurnPercent:         env.NewUint64Config(RentBurnPercentConfigEnvName, defaultRentBurnPercent),
			lamportsPerSignature:    env.NewUint64Config(LamportsPerSignatureConfigEnvName, defaultLamportsPerSignature),
			lockStripes:             env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
			statusCacheSize:         env.NewUint64Config(StatusCacheSizeConfigEnvName, defaultStatusCacheSize),
			maxRecentBlockhashes:    env.NewUint64Config(MaxRecentBlockhashesConfigEnvName, defaultMaxRecentBlockhashes),
			airdropsPerSecond:       env.NewFloat64Config(AirdropsPerSecondConfigEnvName, defaultAirdropsPerSecond),
			debugLogs:               env.NewBoolConfig(DebugLogsConfigEnvName, defaultDebugLogs),
		}
	}
}

// Overrides are statically provided config values. Zero values fall back to
// the defaults, except for pointers, where only nil does, and booleans.
type Overrides struct {
	RentLamportsPerByteYear uint64
	RentExemptionThreshold  float64
	RentBurnPercent         uint64
	LamportsPerSignature    *uint64
	LockStripes             uint64
	StatusCacheSize         uint64
	MaxRecentBlockhashes    uint64
	AirdropsPerSecond       float64
	DebugLogs               bool
}

// WithOverrides returns configuration pulled from statically provided values
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		return &conf{
			rentLamportsPerByteYear: memory.NewUint64Config(orDefault(overrides.RentLamportsPerByteYear, defaultRentLamportsPerByteYear)),
			rentExemptionThreshold:  memory.NewFloat64Config(orDefault(overrides.RentExemptionThreshold, defaultRentExemptionThreshold)),
			rentBurnPercent:         memory.NewUint64Config(orDefault(overrides.RentBurnPercent, defaultRentBurnPercent)),
			lamportsPerSignature:    memory.NewUint64Config(pointer.OrDefault(overrides.LamportsPerSignature, defaultLamportsPerSignature)),
			lockStripes:             memory.NewUint64Config(orDefault(overrides.LockStripes, defaultLockStripes)),
			statusCacheSize:         memory.NewUint64Config(orDefault(overrides.StatusCacheSize, defaultStatusCacheSize)),
			maxRecentBlockhashes:    memory.NewUint64Config(orDefault(overrides.MaxRecentBlockhashes, defaultMaxRecentBlockhashes)),
			airdropsPerSecond:       memory.NewFloat64Config(overrides.AirdropsPerSecond),
			debugLogs:               memory.NewBoolConfig(overrides.DebugLogs),
		}
	}
}

func orDefault[T uint64 | float64](v, fallback T) T {
	if v == 0 {
		return fallback
	}
	return v
}

// rentFor returns the rent sysvar described by the current config, falling
// back to the default rent when the configured values are invalid.
func (c *conf) rentFor(ctx context.Context) (system.RentAccount, error) {
	burn := c.rentBurnPercent.Get(ctx)
	if burn > 100 {
		return system.DefaultRent, errors.Wrapf(system.ErrInvalidRent, "burn percent %d", burn)
	}

	rent := system.RentAccount{
		LamportsPerByteYear: c.rentLamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  c.rentExemptionThreshold.Get(ctx),
		BurnPercent:         uint8(burn),
	}
	if err := rent.Validate(); err != nil {
		return system.DefaultRent, err
	}
	return rent, nil
}
