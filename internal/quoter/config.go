package quoter

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SuccessRateOverrides are applied the first time a batch is retried for a
// success-rate violation (§4.5).
type SuccessRateOverrides struct {
	GasLimitOverride uint64
	MulticallChunk   int
}

// RetryOptions bounds the exponential-backoff attempt loop (§4.5, §4.6).
type RetryOptions struct {
	Retries      int
	MinTimeoutMs int
	MaxTimeoutMs int
}

// ProviderConfig lets a caller pin the block the whole call is sampled at.
// A nil BlockNumber means "fetch current and pin it for the call".
type ProviderConfig struct {
	BlockNumber *big.Int
}

// Config is the set of options recognized by the engine (§6).
type Config struct {
	MulticallChunk              int
	GasLimitPerCall             uint64
	QuoteMinSuccessRate         float64
	SuccessRateFailureOverrides SuccessRateOverrides
	Rollback                    bool
	RetryOptions                RetryOptions
	QuoterAddressOverride       common.Address
	ProviderConfig              ProviderConfig
}

// DefaultConfig mirrors the defaults a smart-order-router style caller
// would normally supply.
func DefaultConfig() Config {
	return Config{
		MulticallChunk:      210,
		GasLimitPerCall:     7_000_000,
		QuoteMinSuccessRate: 0.2,
		SuccessRateFailureOverrides: SuccessRateOverrides{
			GasLimitOverride: 20_000_000,
			MulticallChunk:   90,
		},
		Rollback: false,
		RetryOptions: RetryOptions{
			Retries:      2,
			MinTimeoutMs: 100,
			MaxTimeoutMs: 1000,
		},
	}
}

func (o RetryOptions) backoff(attempt int) time.Duration {
	min := time.Duration(o.MinTimeoutMs) * time.Millisecond
	max := time.Duration(o.MaxTimeoutMs) * time.Millisecond
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt)
	if d <= 0 || d > max {
		d = max
	}
	return d
}
