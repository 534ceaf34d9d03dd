package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CEXMid = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_cex_mid_usd",
		Help: "CEX mid price (USD) for current pair",
	})

	DexOutUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_dex_out_usd",
		Help: "DEX out (USD) for base qty",
	})

	GasUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_gas_usd",
		Help: "Estimated gas cost in USD",
	})

	QuoterErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quoter_errors_total",
		Help: "Number of quoter failures",
	})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_quoter_latency_seconds",
		Help:    "Time to obtain a DEX quote",
		Buckets: prometheus.DefBuckets, // можно настроить под себя
	})

	// Batched quote fetcher metrics, one counter per retry cause plus a
	// handful of call-volume/loop-count gauges and a gas histogram.
	QuoteBlockConflictErrorRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_block_conflict_error_retry_total",
		Help: "Quote calls that retried at least once because their batches' block heights diverged within an attempt",
	})

	QuoteBlockHeaderNotFoundRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_block_header_not_found_retry_total",
		Help: "Quote calls that retried at least once after a missing block header error from the provider",
	})

	QuoteTimeoutRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_timeout_retry_total",
		Help: "Quote calls that retried at least once after a provider timeout",
	})

	QuoteOutOfGasExceptionRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_out_of_gas_exception_retry_total",
		Help: "Quote calls that retried at least once after a batch exhausted its per-call gas limit",
	})

	QuoteSuccessRateRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_success_rate_retry_total",
		Help: "Quote calls that retried at least once after a batch fell below the minimum success rate",
	})

	QuoteUnknownReasonRetry = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_unknown_reason_retry_total",
		Help: "Quote calls that retried at least once after an unclassified failure",
	})

	QuoteApproxGasUsedPerSuccessfulCall = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_quote_approx_gas_used_per_successful_call",
		Help:    "Gas estimate reported per successful quoter call",
		Buckets: prometheus.ExponentialBuckets(10_000, 2, 12),
	})

	QuoteNumRetryLoops = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_quote_num_retry_loops",
		Help: "Number of retry attempt rounds the last GetQuotesMany call needed",
	})

	QuoteTotalCallsToProvider = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_total_calls_to_provider_total",
		Help: "Total aggregator (multicall) calls issued to the provider, including retries",
	})

	QuoteExpectedCallsToProvider = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_quote_expected_calls_to_provider",
		Help: "Aggregator calls the last GetQuotesMany call would need with zero retries",
	})

	QuoteNumRetriedCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_quote_num_retried_calls_total",
		Help: "Failed batches sent back for another attempt, counted once for each attempt they failed",
	})
)

func init() {
	prometheus.MustRegister(
		CEXMid,
		DexOutUSD,
		GasUSD,
		QuoterErrors,
		QuoteLatency,
		QuoteBlockConflictErrorRetry,
		QuoteBlockHeaderNotFoundRetry,
		QuoteTimeoutRetry,
		QuoteOutOfGasExceptionRetry,
		QuoteSuccessRateRetry,
		QuoteUnknownReasonRetry,
		QuoteApproxGasUsedPerSuccessfulCall,
		QuoteNumRetryLoops,
		QuoteTotalCallsToProvider,
		QuoteExpectedCallsToProvider,
		QuoteNumRetriedCalls,
	)
}
