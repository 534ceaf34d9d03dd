package univ3

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alwaysEnergetic/smart-order-router/internal/multicall"
	"github.com/alwaysEnergetic/smart-order-router/internal/quoter"
)

// fakeMulticallClient scripts one canned multicall.AggregateResult per
// call, mirroring the seam internal/quoter's own tests use against a fake
// aggregator.
type fakeMulticallClient struct {
	result multicall.AggregateResult
	err    error
	calls  int
}

func (f *fakeMulticallClient) Multicall(ctx context.Context, calls []multicall.Call, opts multicall.CallOpts) (multicall.AggregateResult, error) {
	f.calls++
	return f.result, f.err
}

func quoteExactInputData(t *testing.T, amountOut int64) []byte {
	t.Helper()
	data, err := quoter.EncodeQuoteExactInputResultForTest(amountOut, []int64{1 << 40}, []uint32{1}, 100_000)
	require.NoError(t, err)
	return data
}

func TestMultiQuoterQuoteAllPicksBestFeeTier(t *testing.T) {
	wethAddr := common.HexToAddress("0x82af49447d8a07e3bd95bd0d56f35241523fbab1")
	usdtAddr := common.HexToAddress("0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9")

	client := &fakeMulticallClient{
		result: multicall.AggregateResult{
			BlockNumber: big.NewInt(42),
			Results: []multicall.Result{
				{Success: true, Data: quoteExactInputData(t, 100)},
				{Success: true, Data: quoteExactInputData(t, 150)},
			},
		},
	}

	cfg := quoter.DefaultConfig()
	cfg.ProviderConfig.BlockNumber = big.NewInt(42)
	engine := quoter.NewEngineWithClient(client, common.HexToAddress("0xbeef"), cfg, zap.NewNop(), nil)

	mq := &MultiQuoter{
		log:    zap.NewNop(),
		engine: engine,
	}
	mq.decimalsCache.Store(usdtAddr, 6)

	reqs := []MultiQuoteRequest{{
		PairSymbol: "WETH/USDT",
		TokenIn:    wethAddr,
		TokenOut:   usdtAddr,
		Amount:     big.NewInt(1e18),
		FeeTiers:   []uint32{500, 3000},
		Type:       QuoteTypeExactInput,
	}}

	results, err := mq.QuoteAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Contains(t, results, "WETH/USDT")

	quote := results["WETH/USDT"]
	assert.NoError(t, quote.Error)
	assert.Equal(t, uint32(3000), quote.FeeTier)
	assert.Equal(t, int64(150), quote.Amount.Int64())
}

func TestMultiQuoterQuoteAllNoFeeTiers(t *testing.T) {
	mq := &MultiQuoter{log: zap.NewNop()}
	_, err := mq.quoteOne(context.Background(), MultiQuoteRequest{PairSymbol: "X/Y"})
	assert.Error(t, err)
}
