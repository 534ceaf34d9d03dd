package quoter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/alwaysEnergetic/smart-order-router/internal/metrics"
	"github.com/alwaysEnergetic/smart-order-router/internal/multicall"
)

// Engine is the batched on-chain quote fetcher. One Engine is built per
// chain (it is pinned to one quoter address and one multicall.IClient) and
// is safe for concurrent use across independent calls.
type Engine struct {
	client        multicall.IClient
	cfg           Config
	quoterAddr    common.Address
	log           *zap.Logger
	blockNumberFn func(context.Context) (*big.Int, error)
}

// NewEngine wires a multicall client and a quoter contract address into an
// Engine. When cfg.QuoterAddressOverride is the zero address, registry is
// consulted for chainID instead.
func NewEngine(ethc *ethclient.Client, multicallAddr common.Address, chainID uint64, registry AddressRegistry, cfg Config, log *zap.Logger) (*Engine, error) {
	addr := cfg.QuoterAddressOverride
	if addr == (common.Address{}) {
		resolved, ok := registry.QuoterAddress(chainID)
		if !ok {
			return nil, errNoQuoterAddress
		}
		addr = resolved
	}
	client, err := multicall.New(ethc, multicallAddr)
	if err != nil {
		return nil, fmt.Errorf("quoter: build multicall client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	blockFn := func(ctx context.Context) (*big.Int, error) {
		n, err := ethc.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(n), nil
	}
	return &Engine{client: client, cfg: cfg, quoterAddr: addr, log: log, blockNumberFn: blockFn}, nil
}

// NewEngineWithClient builds an Engine around a caller-supplied
// multicall.IClient instead of dialing one from an *ethclient.Client. It
// exists so other packages can exercise an Engine against a fake
// aggregator in their own tests without a live RPC endpoint; production
// code should use NewEngine. A nil blockNumberFn defaults to reporting
// block 0, which is harmless as long as cfg.ProviderConfig.BlockNumber is
// set explicitly by the caller.
func NewEngineWithClient(client multicall.IClient, quoterAddr common.Address, cfg Config, log *zap.Logger, blockNumberFn func(context.Context) (*big.Int, error)) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if blockNumberFn == nil {
		blockNumberFn = func(context.Context) (*big.Int, error) { return big.NewInt(0), nil }
	}
	return &Engine{client: client, cfg: cfg, quoterAddr: quoterAddr, log: log, blockNumberFn: blockNumberFn}
}

// GetQuotesManyExactIn quotes every route for every amount, treating each
// amount as an exact input.
func (e *Engine) GetQuotesManyExactIn(ctx context.Context, routes []RouteSpec, amounts []Amount) (Result, error) {
	return e.getQuotesMany(ctx, routes, amounts, ExactIn)
}

// GetQuotesManyExactOut quotes every route for every amount, treating each
// amount as an exact output; routes are path-reversed before encoding.
func (e *Engine) GetQuotesManyExactOut(ctx context.Context, routes []RouteSpec, amounts []Amount) (Result, error) {
	return e.getQuotesMany(ctx, routes, amounts, ExactOut)
}

func (e *Engine) getQuotesMany(ctx context.Context, routes []RouteSpec, amounts []Amount, direction Direction) (Result, error) {
	if len(routes) == 0 || len(amounts) == 0 {
		return Result{RoutesWithQuotes: nil, BlockNumber: nil}, nil
	}

	inputs, err := plan(routes, amounts, direction)
	if err != nil {
		return Result{}, err
	}

	expectedCalls := len(inputs)
	metrics.QuoteExpectedCallsToProvider.Set(float64(expectedCalls))

	blockNumber := e.cfg.ProviderConfig.BlockNumber
	if blockNumber == nil {
		num, err := e.blockNumberFn(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("quoter: fetch current block: %w", err)
		}
		blockNumber = num
	}

	quoterAddr := [20]byte(e.quoterAddr)
	rc := newRetryController(e.cfg, blockNumber, quoterAddr, direction)
	exec := newExecutor(e.client, direction)

	batchPlans, err := splitIntoBatches(inputs, direction, quoterAddr, rc.currentGasLimit, rc.currentMulticallChunk)
	if err != nil {
		return Result{}, err
	}
	batches := make([]*trackedBatch, len(batchPlans))
	for i, p := range batchPlans {
		batches[i] = newTrackedBatch(p, rc.currentGasLimit)
	}
	t := newTracker(batches)

	var finalSuccesses []*trackedBatch
	loops := 0
	totalCalls := 0

	for attempt := 0; attempt <= e.cfg.RetryOptions.Retries; attempt++ {
		pending := t.pending()
		if len(pending) == 0 {
			break
		}
		loops++

		totalCalls += countCalls(pending)
		metrics.QuoteTotalCallsToProvider.Add(float64(countCalls(pending)))

		exec.runAttempt(ctx, pending, rc.currentBlockNumber())

		for _, b := range pending {
			for _, r := range b.RawResults {
				if r.Success && r.GasEstimate != nil {
					metrics.QuoteApproxGasUsedPerSuccessfulCall.Observe(float64(r.GasEstimate.Int64()))
				}
			}
		}

		successes, _, err := t.partition()
		if err != nil {
			return Result{}, err
		}

		blockConflictMajority := validate(successes, e.cfg.QuoteMinSuccessRate, rc.hasRetried(FailureSuccessRateTooLow))
		successes, failures, err := t.partition()
		if err != nil {
			return Result{}, err
		}
		finalSuccesses = successes

		if len(failures) == 0 {
			break
		}
		if attempt == e.cfg.RetryOptions.Retries {
			return Result{}, e.exhaustionError(failures)
		}

		bumpRetryMetrics(failures, rc)
		metrics.QuoteNumRetriedCalls.Add(float64(len(failures)))

		retryAll := rc.prepareRetries(failures, blockConflictMajority)

		if retryAll {
			newPlans, err := splitIntoBatches(inputs, direction, quoterAddr, rc.currentGasLimit, rc.currentMulticallChunk)
			if err != nil {
				return Result{}, err
			}
			newBatches := make([]*trackedBatch, len(newPlans))
			for i, p := range newPlans {
				newBatches[i] = newTrackedBatch(p, rc.currentGasLimit)
			}
			t.batches = newBatches
		} else {
			var extra []*trackedBatch
			for _, b := range failures {
				for _, extraPlan := range b.extraSplits {
					extra = append(extra, newTrackedBatch(extraPlan, b.GasLimit))
				}
				b.extraSplits = nil
			}
			if len(extra) > 0 {
				t.batches = append(t.batches, extra...)
			}
		}

		sleepBackoff(ctx, e.cfg.RetryOptions.backoff(attempt))
	}

	metrics.QuoteNumRetryLoops.Set(float64(loops))

	routeQuotes := assemble(finalSuccesses, routes, amounts, e.log)
	block := majorityBlockNumber(finalSuccesses)
	if block == nil {
		block = blockNumber
	}

	e.log.Info("quoter: attempt complete",
		zap.Int("routes", len(routes)),
		zap.Int("amounts", len(amounts)),
		zap.Int("retry_loops", loops),
		zap.Int("total_calls", totalCalls),
		zap.Stringer("block_number", (*bigIntStringer)(block)),
	)

	return Result{RoutesWithQuotes: routeQuotes, BlockNumber: block}, nil
}

func (e *Engine) exhaustionError(failures []*trackedBatch) error {
	kinds := make([]FailureKind, 0, len(failures))
	var last error
	for _, b := range failures {
		if b.Failure == nil {
			continue
		}
		kinds = append(kinds, b.Failure.Kind)
		last = fmt.Errorf("%s", b.Failure.Message)
	}
	return &CallError{Kinds: kinds, Last: last}
}

// bumpRetryMetrics increments each Quote*Retry counter at most once per
// call (§6, §8): a kind's metric fires the first time this call sees a
// failure of that kind, whether or not that kind's batch count or the
// number of attempts the call needed grows afterward.
func bumpRetryMetrics(failures []*trackedBatch, rc *retryController) {
	seen := make(map[FailureKind]bool)
	for _, b := range failures {
		kind := FailureUnknown
		if b.Failure != nil {
			kind = b.Failure.Kind
		}
		if seen[kind] || rc.hasRetried(kind) {
			continue
		}
		seen[kind] = true

		switch kind {
		case FailureBlockConflict:
			metrics.QuoteBlockConflictErrorRetry.Inc()
		case FailureBlockHeaderMissing:
			metrics.QuoteBlockHeaderNotFoundRetry.Inc()
		case FailureTimeout:
			metrics.QuoteTimeoutRetry.Inc()
		case FailureOutOfGas:
			metrics.QuoteOutOfGasExceptionRetry.Inc()
		case FailureSuccessRateTooLow:
			metrics.QuoteSuccessRateRetry.Inc()
		default:
			metrics.QuoteUnknownReasonRetry.Inc()
		}
	}
}

// countCalls returns the number of aggregator calls an attempt over these
// batches issues: one multicall per batch.
func countCalls(batches []*trackedBatch) int {
	return len(batches)
}

func sleepBackoff(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// bigIntStringer adapts a possibly-nil *big.Int to fmt.Stringer for zap.
type bigIntStringer big.Int

func (b *bigIntStringer) String() string {
	if b == nil {
		return "<nil>"
	}
	return (*big.Int)(b).String()
}
