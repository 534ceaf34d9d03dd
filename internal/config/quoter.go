package config

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alwaysEnergetic/smart-order-router/internal/quoter"
)

// QuoterConfig is the yaml-facing mirror of quoter.Config (§6): it exists
// so the batched quote fetcher's knobs live alongside the rest of this
// bot's config file instead of requiring a second config source.
type QuoterConfig struct {
	MulticallChunk      int     `yaml:"multicall_chunk"`
	GasLimitPerCall      uint64  `yaml:"gas_limit_per_call"`
	QuoteMinSuccessRate float64 `yaml:"quote_min_success_rate"`
	Rollback            bool    `yaml:"rollback"`

	SuccessRateFailureOverrides struct {
		GasLimitOverride uint64 `yaml:"gas_limit_override"`
		MulticallChunk   int    `yaml:"multicall_chunk"`
	} `yaml:"success_rate_failure_overrides"`

	RetryOptions struct {
		Retries      int `yaml:"retries"`
		MinTimeoutMs int `yaml:"min_timeout_ms"`
		MaxTimeoutMs int `yaml:"max_timeout_ms"`
	} `yaml:"retry_options"`

	QuoterAddressOverride string `yaml:"quoter_address_override"`

	ProviderConfig struct {
		BlockNumber uint64 `yaml:"block_number"`
	} `yaml:"provider_config"`
}

// applyDefaults fills in any zero-valued field from quoter.DefaultConfig,
// the same pattern Load uses for the rest of Config's sections.
func (q *QuoterConfig) applyDefaults() {
	d := quoter.DefaultConfig()
	if q.MulticallChunk == 0 {
		q.MulticallChunk = d.MulticallChunk
	}
	if q.GasLimitPerCall == 0 {
		q.GasLimitPerCall = d.GasLimitPerCall
	}
	if q.QuoteMinSuccessRate == 0 {
		q.QuoteMinSuccessRate = d.QuoteMinSuccessRate
	}
	if q.SuccessRateFailureOverrides.GasLimitOverride == 0 {
		q.SuccessRateFailureOverrides.GasLimitOverride = d.SuccessRateFailureOverrides.GasLimitOverride
	}
	if q.SuccessRateFailureOverrides.MulticallChunk == 0 {
		q.SuccessRateFailureOverrides.MulticallChunk = d.SuccessRateFailureOverrides.MulticallChunk
	}
	if q.RetryOptions.Retries == 0 {
		q.RetryOptions.Retries = d.RetryOptions.Retries
	}
	if q.RetryOptions.MinTimeoutMs == 0 {
		q.RetryOptions.MinTimeoutMs = d.RetryOptions.MinTimeoutMs
	}
	if q.RetryOptions.MaxTimeoutMs == 0 {
		q.RetryOptions.MaxTimeoutMs = d.RetryOptions.MaxTimeoutMs
	}
}

// ToQuoterConfig translates the yaml section into the quoter package's own
// Config, the boundary between this bot's config file and the engine.
func (q QuoterConfig) ToQuoterConfig() quoter.Config {
	cfg := quoter.Config{
		MulticallChunk:      q.MulticallChunk,
		GasLimitPerCall:     q.GasLimitPerCall,
		QuoteMinSuccessRate: q.QuoteMinSuccessRate,
		Rollback:            q.Rollback,
		SuccessRateFailureOverrides: quoter.SuccessRateOverrides{
			GasLimitOverride: q.SuccessRateFailureOverrides.GasLimitOverride,
			MulticallChunk:   q.SuccessRateFailureOverrides.MulticallChunk,
		},
		RetryOptions: quoter.RetryOptions{
			Retries:      q.RetryOptions.Retries,
			MinTimeoutMs: q.RetryOptions.MinTimeoutMs,
			MaxTimeoutMs: q.RetryOptions.MaxTimeoutMs,
		},
	}
	if q.QuoterAddressOverride != "" {
		cfg.QuoterAddressOverride = common.HexToAddress(q.QuoterAddressOverride)
	}
	if q.ProviderConfig.BlockNumber != 0 {
		cfg.ProviderConfig.BlockNumber = new(big.Int).SetUint64(q.ProviderConfig.BlockNumber)
	}
	return cfg
}
