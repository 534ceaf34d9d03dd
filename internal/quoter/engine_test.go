package quoter

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwaysEnergetic/smart-order-router/internal/metrics"
	"github.com/alwaysEnergetic/smart-order-router/internal/multicall"
)

// fakeMulticallClient is a hand-written stand-in for a live
// multicall.IClient: a queue of canned AggregateResult/error pairs, consumed
// one per Multicall call, so a test can script exactly what each attempt
// sees. Batches within one attempt are dispatched concurrently by the
// executor, so every access to shared state is guarded by mu.
type fakeMulticallClient struct {
	mu            sync.Mutex
	responses     []fakeResponse
	calls         int
	receivedCalls [][]multicall.Call
	receivedOpts  []multicall.CallOpts
}

// fakeResponse scripts one Multicall reply. When dynamicData is set and
// err/result are zero, the response synthesizes one successful Result per
// incoming call rather than a fixed-size canned slice — used to script
// retries that land on a batch whose size changed because the retry
// controller re-chunked it.
type fakeResponse struct {
	result      multicall.AggregateResult
	err         error
	dynamicData []byte
	dynamicGas  uint64
}

func (f *fakeMulticallClient) Multicall(ctx context.Context, calls []multicall.Call, opts multicall.CallOpts) (multicall.AggregateResult, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.receivedCalls = append(f.receivedCalls, calls)
	f.receivedOpts = append(f.receivedOpts, opts)
	hasResp := idx < len(f.responses)
	var resp fakeResponse
	if hasResp {
		resp = f.responses[idx]
	}
	f.mu.Unlock()

	if !hasResp {
		return multicall.AggregateResult{}, nil
	}
	if resp.err != nil {
		return multicall.AggregateResult{}, resp.err
	}
	if resp.dynamicData != nil {
		results := make([]multicall.Result, len(calls))
		for i := range results {
			results[i] = multicall.Result{Success: true, GasUsed: resp.dynamicGas, Data: resp.dynamicData}
		}
		return multicall.AggregateResult{BlockNumber: resp.result.BlockNumber, Results: results}, nil
	}
	return resp.result, nil
}

func (f *fakeMulticallClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func oneHopRoute() RouteSpec {
	return RouteSpec{Pools: []PoolRef{
		{TokenIn: common.HexToAddress("0x1"), TokenOut: common.HexToAddress("0x2"), Fee: 500},
	}}
}

func mustAmount(t *testing.T, raw int64) Amount {
	t.Helper()
	a, err := NewAmount(common.HexToAddress("0x1"), 18, big.NewInt(raw))
	require.NoError(t, err)
	return a
}

func successData(t *testing.T, amountOut int64, gas int64) []byte {
	t.Helper()
	data, err := EncodeQuoteExactInputResultForTest(amountOut, []int64{1 << 40}, []uint32{1}, gas)
	require.NoError(t, err)
	return data
}

func TestEngine_HappyPath(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 100)}

	client := &fakeMulticallClient{responses: []fakeResponse{
		{result: multicall.AggregateResult{
			BlockNumber: big.NewInt(42),
			Results: []multicall.Result{
				{Success: true, GasUsed: 120_000, Data: successData(t, 999, 120_000)},
			},
		}},
	}}

	cfg := DefaultConfig()
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithQuotes, 1)
	require.Len(t, res.RoutesWithQuotes[0].Quotes, 1)

	q := res.RoutesWithQuotes[0].Quotes[0]
	assert.True(t, q.Ok())
	assert.Equal(t, int64(999), q.OutputAmount.Int64())
	assert.Equal(t, 0, big.NewInt(42).Cmp(res.BlockNumber))
	assert.Equal(t, 1, client.callCount())
}

// Scenario 2: out-of-gas recovery (§8.2). The failed attempt's batch is
// small enough that re-chunking to 140 leaves it as a single batch, so
// this test isolates the gas_limit_per_call adjustment; the chunk-size
// adjustment is covered separately below where it actually changes the
// number of batches sent.
func TestEngine_OutOfGasLowersGasLimitPerCall(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 100)}

	before := testutil.ToFloat64(metrics.QuoteOutOfGasExceptionRetry)

	client := &fakeMulticallClient{responses: []fakeResponse{
		{err: assertErr("execution reverted: out of gas")},
		{result: multicall.AggregateResult{
			BlockNumber: big.NewInt(42),
			Results: []multicall.Result{
				{Success: true, GasUsed: 900_000, Data: successData(t, 999, 900_000)},
			},
		}},
	}}

	cfg := DefaultConfig()
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithQuotes, 1)
	assert.True(t, res.RoutesWithQuotes[0].Quotes[0].Ok())
	assert.Equal(t, 2, client.callCount())

	require.Len(t, client.receivedCalls, 2)
	require.Len(t, client.receivedCalls[1], 1)
	assert.Equal(t, uint64(outOfGasGasLimitFloor), client.receivedCalls[1][0].GasLimit)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QuoteOutOfGasExceptionRetry))
}

// OutOfGas also lowers multicall_chunk to 140 (§4.5). With a batch larger
// than that floor, the retried attempt must re-chunk it into multiple
// smaller aggregator calls instead of resending the one oversized batch.
func TestEngine_OutOfGasShrinksOversizedBatchBelowChunkFloor(t *testing.T) {
	route := oneHopRoute()
	const n = 145
	amounts := make([]Amount, n)
	for i := range amounts {
		amounts[i] = mustAmount(t, int64(100+i))
	}

	data := successData(t, 999, 500_000)

	client := &fakeMulticallClient{responses: []fakeResponse{
		{err: assertErr("execution reverted: out of gas")},
		{dynamicData: data, dynamicGas: 500_000, result: multicall.AggregateResult{BlockNumber: big.NewInt(42)}},
		{dynamicData: data, dynamicGas: 500_000, result: multicall.AggregateResult{BlockNumber: big.NewInt(42)}},
	}}

	cfg := DefaultConfig()
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithQuotes, 1)

	// 1 oversized batch on the failed first attempt, 2 re-chunked batches
	// (<=140 each) on the retry.
	assert.Equal(t, 3, client.callCount())
	require.Len(t, client.receivedCalls, 3)
	assert.Len(t, client.receivedCalls[0], n)
	for _, calls := range client.receivedCalls[1:] {
		assert.LessOrEqual(t, len(calls), outOfGasMulticallChunkFloor)
		for _, c := range calls {
			assert.Equal(t, uint64(outOfGasGasLimitFloor), c.GasLimit)
		}
	}
	assert.Equal(t, len(client.receivedCalls[1])+len(client.receivedCalls[2]), n)
}

// Scenario 3: block conflict (§8.3). Three single-input batches succeed at
// block heights [100, 100, 101]; the validator demotes the whole attempt
// to BlockConflict and the retry controller re-plans all three batches
// from scratch. The second attempt's batches all land at block 102, which
// must be the block_number the call finally reports.
func TestEngine_BlockConflictTriggersFullReplan(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 10), mustAmount(t, 20), mustAmount(t, 30)}
	data := successData(t, 999, 100_000)

	before := testutil.ToFloat64(metrics.QuoteBlockConflictErrorRetry)

	successAt := func(block int64) fakeResponse {
		return fakeResponse{result: multicall.AggregateResult{
			BlockNumber: big.NewInt(block),
			Results:     []multicall.Result{{Success: true, GasUsed: 100_000, Data: data}},
		}}
	}

	client := &fakeMulticallClient{responses: []fakeResponse{
		successAt(100), successAt(100), successAt(101),
		successAt(102), successAt(102), successAt(102),
	}}

	cfg := DefaultConfig()
	cfg.MulticallChunk = 1
	cfg.ProviderConfig.BlockNumber = big.NewInt(99)
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	require.Len(t, res.RoutesWithQuotes, 1)
	require.Len(t, res.RoutesWithQuotes[0].Quotes, 3)
	for _, q := range res.RoutesWithQuotes[0].Quotes {
		assert.True(t, q.Ok())
	}
	assert.Equal(t, 0, big.NewInt(102).Cmp(res.BlockNumber))
	assert.Equal(t, 6, client.callCount())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QuoteBlockConflictErrorRetry))
}

// Scenario 4: block-header rollback (§8.4). The first header-not-found
// sighting just marks the kind retried; only the second decrements the
// pinned block number (when rollback is enabled) and forces a replan.
func TestEngine_BlockHeaderMissingRollsBackOnSecondSighting(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 100)}

	client := &fakeMulticallClient{responses: []fakeResponse{
		{err: assertErr("header not found for block")},
		{err: assertErr("header not found for block")},
		{result: multicall.AggregateResult{
			BlockNumber: big.NewInt(49),
			Results: []multicall.Result{
				{Success: true, GasUsed: 100_000, Data: successData(t, 999, 100_000)},
			},
		}},
	}}

	cfg := DefaultConfig()
	cfg.Rollback = true
	cfg.ProviderConfig.BlockNumber = big.NewInt(50)
	cfg.RetryOptions.Retries = 3
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	assert.Equal(t, 3, client.callCount())
	assert.Equal(t, 0, big.NewInt(49).Cmp(res.BlockNumber))

	// The third call (the one after rollback) must have been pinned one
	// block below the original; the first two still used the original.
	require.Len(t, client.receivedOpts, 3)
	require.NotNil(t, client.receivedOpts[0].BlockNumber)
	assert.Equal(t, 0, big.NewInt(50).Cmp(client.receivedOpts[0].BlockNumber))
	require.NotNil(t, client.receivedOpts[2].BlockNumber)
	assert.Equal(t, 0, big.NewInt(49).Cmp(client.receivedOpts[2].BlockNumber))
}

// Scenario 5a: a batch with partial quote failures is accepted outright,
// without a retry, when its success rate (2 of 5 = 0.4) still clears the
// configured floor (0.2).
func TestEngine_PartialBatchFailureAboveFloorAcceptedWithoutRetry(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 1), mustAmount(t, 2), mustAmount(t, 3), mustAmount(t, 4), mustAmount(t, 5)}

	client := &fakeMulticallClient{responses: []fakeResponse{
		{result: multicall.AggregateResult{
			BlockNumber: big.NewInt(42),
			Results: []multicall.Result{
				{Success: true, GasUsed: 100_000, Data: successData(t, 100, 100_000)},
				{Success: false},
				{Success: true, GasUsed: 100_000, Data: successData(t, 200, 100_000)},
				{Success: false},
				{Success: false},
			},
		}},
	}}

	cfg := DefaultConfig()
	cfg.QuoteMinSuccessRate = 0.2
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())

	quotes := res.RoutesWithQuotes[0].Quotes
	assert.True(t, quotes[0].Ok())
	assert.False(t, quotes[1].Ok())
	assert.True(t, quotes[2].Ok())
	assert.False(t, quotes[3].Ok())
	assert.False(t, quotes[4].Ok())
}

// Scenario 5b: below-floor on the first sighting fails the batch, raises
// gas_limit_per_call and lowers multicall_chunk to the configured
// overrides, and forces a full replan; the second attempt is accepted
// regardless of rate because the call has already retried for
// success-rate once.
func TestEngine_SuccessRateBelowFloorRetriedOnceThenAcceptedRegardless(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 1), mustAmount(t, 2), mustAmount(t, 3), mustAmount(t, 4), mustAmount(t, 5)}

	before := testutil.ToFloat64(metrics.QuoteSuccessRateRetry)

	lowRateResults := []multicall.Result{
		{Success: true, GasUsed: 100_000, Data: successData(t, 100, 100_000)},
		{Success: false},
		{Success: true, GasUsed: 100_000, Data: successData(t, 200, 100_000)},
		{Success: false},
		{Success: false},
	}

	client := &fakeMulticallClient{responses: []fakeResponse{
		{result: multicall.AggregateResult{BlockNumber: big.NewInt(42), Results: lowRateResults}},
		{result: multicall.AggregateResult{BlockNumber: big.NewInt(42), Results: lowRateResults}},
	}}

	cfg := DefaultConfig()
	cfg.QuoteMinSuccessRate = 0.7
	cfg.SuccessRateFailureOverrides = SuccessRateOverrides{GasLimitOverride: 20_000_000, MulticallChunk: 90}
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())

	quotes := res.RoutesWithQuotes[0].Quotes
	assert.True(t, quotes[0].Ok())
	assert.False(t, quotes[1].Ok())

	require.Len(t, client.receivedCalls, 2)
	for _, c := range client.receivedCalls[1] {
		assert.Equal(t, uint64(20_000_000), c.GasLimit)
	}

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QuoteSuccessRateRetry))
}

func TestEngine_RetryExhaustionSurfacesCallError(t *testing.T) {
	route := oneHopRoute()
	amounts := []Amount{mustAmount(t, 100)}

	client := &fakeMulticallClient{responses: []fakeResponse{
		{err: assertErr("request timeout")},
		{err: assertErr("request timeout")},
		{err: assertErr("request timeout")},
	}}

	cfg := DefaultConfig()
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	cfg.RetryOptions.Retries = 2
	cfg.RetryOptions.MinTimeoutMs = 1
	cfg.RetryOptions.MaxTimeoutMs = 1
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), cfg, nil, nil)

	_, err := e.GetQuotesManyExactIn(context.Background(), []RouteSpec{route}, amounts)
	require.Error(t, err)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
}

func TestEngine_EmptyInputsReturnEmptyResult(t *testing.T) {
	client := &fakeMulticallClient{}
	e := NewEngineWithClient(client, common.HexToAddress("0xdead"), DefaultConfig(), nil, nil)

	res, err := e.GetQuotesManyExactIn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res.RoutesWithQuotes)
	assert.Equal(t, 0, client.callCount())
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertErr(msg string) error { return simpleError(msg) }
