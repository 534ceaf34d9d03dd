package univ3

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/alwaysEnergetic/smart-order-router/internal/config"
	"github.com/alwaysEnergetic/smart-order-router/internal/quoter"
)

// MultiQuoter is the venue-facing batch quoter for Uniswap V3. It treats
// each requested fee tier as a one-hop RouteSpec and fans every pair's fee
// tiers out through the batched quote fetcher's Engine in one call, so the
// gas-bounded multicall batching, error classification and block-height
// guarantees described by the quoter package apply to venue quoting too.
type MultiQuoter struct {
	log    *zap.Logger
	cfg    *config.Config
	ec     *ethclient.Client
	engine *quoter.Engine

	decimalsCache sync.Map
}

type QuoteType int

const (
	QuoteTypeExactInput QuoteType = iota
	QuoteTypeExactOutput
)

type MultiQuoteRequest struct {
	PairSymbol string
	TokenIn    common.Address
	TokenOut   common.Address
	Amount     *big.Int // AmountIn for ExactInput, AmountOut for ExactOutput
	FeeTiers   []uint32
	Type       QuoteType
}

type MultiQuoteResult struct {
	Amount    *big.Int // AmountOut for ExactInput, AmountIn for ExactOutput
	AmountUSD float64  // Human-readable amount
	FeeTier   uint32
	Error     error
}

func NewMultiQuoter(cfg *config.Config, log *zap.Logger) (*MultiQuoter, error) {
	ec, err := ethclient.Dial(cfg.Chain.RPCHTTP)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	mcAddr := common.HexToAddress(cfg.DEX.Multicall)
	if mcAddr == (common.Address{}) {
		return nil, fmt.Errorf("multicall address is not configured")
	}

	quoterAddr := common.HexToAddress(cfg.DEX.QuoterV2)
	if quoterAddr == (common.Address{}) {
		return nil, fmt.Errorf("quoter v2 address is not configured")
	}

	qcfg := cfg.Quoter.ToQuoterConfig()
	qcfg.QuoterAddressOverride = quoterAddr

	engine, err := quoter.NewEngine(ec, mcAddr, 0, quoter.DefaultRegistry(), qcfg, log)
	if err != nil {
		return nil, fmt.Errorf("new quoter engine: %w", err)
	}

	return &MultiQuoter{
		log:    log,
		cfg:    cfg,
		ec:     ec,
		engine: engine,
	}, nil
}

// QuoteAll resolves, for every request, the best (highest AmountOut for
// ExactInput, lowest AmountIn for ExactOutput) quote across its fee tiers.
// Requests are not merged: each request is its own engine call, with one
// one-hop route per requested fee tier, all quoted at the request's single
// Amount.
func (mq *MultiQuoter) QuoteAll(ctx context.Context, reqs []MultiQuoteRequest) (map[string]MultiQuoteResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	out := make(map[string]MultiQuoteResult, len(reqs))
	for _, req := range reqs {
		res, err := mq.quoteOne(ctx, req)
		if err != nil {
			out[req.PairSymbol] = MultiQuoteResult{Error: err}
			continue
		}
		out[req.PairSymbol] = res
	}
	return out, nil
}

func (mq *MultiQuoter) quoteOne(ctx context.Context, req MultiQuoteRequest) (MultiQuoteResult, error) {
	if len(req.FeeTiers) == 0 {
		return MultiQuoteResult{}, fmt.Errorf("no fee tiers requested")
	}

	routes := make([]quoter.RouteSpec, len(req.FeeTiers))
	for i, fee := range req.FeeTiers {
		routes[i] = quoter.RouteSpec{Pools: []quoter.PoolRef{
			{TokenIn: req.TokenIn, TokenOut: req.TokenOut, Fee: fee},
		}}
	}

	quoteToken := req.TokenOut
	if req.Type == QuoteTypeExactOutput {
		quoteToken = req.TokenIn
	}
	decimals, err := mq.getDecimals(ctx, quoteToken)
	if err != nil {
		return MultiQuoteResult{}, fmt.Errorf("get decimals: %w", err)
	}

	inputAsset := req.TokenIn
	if req.Type == QuoteTypeExactOutput {
		inputAsset = req.TokenOut
	}
	amount, err := quoter.NewAmount(inputAsset, 0, req.Amount)
	if err != nil {
		return MultiQuoteResult{}, fmt.Errorf("bad amount: %w", err)
	}

	var result quoter.Result
	if req.Type == QuoteTypeExactInput {
		result, err = mq.engine.GetQuotesManyExactIn(ctx, routes, []quoter.Amount{amount})
	} else {
		result, err = mq.engine.GetQuotesManyExactOut(ctx, routes, []quoter.Amount{amount})
	}
	if err != nil {
		return MultiQuoteResult{}, err
	}

	var best MultiQuoteResult
	found := false
	for i, rq := range result.RoutesWithQuotes {
		if len(rq.Quotes) == 0 || !rq.Quotes[0].Ok() {
			continue
		}
		amt := rq.Quotes[0].OutputAmount
		fee := req.FeeTiers[i]

		isBetter := !found
		if found {
			if req.Type == QuoteTypeExactInput && amt.Cmp(best.Amount) > 0 {
				isBetter = true
			} else if req.Type == QuoteTypeExactOutput && amt.Cmp(best.Amount) < 0 {
				isBetter = true
			}
		}
		if isBetter {
			best = MultiQuoteResult{Amount: amt, AmountUSD: ToFloat(amt, decimals), FeeTier: fee}
			found = true
		}
	}

	if !found {
		return MultiQuoteResult{}, fmt.Errorf("no successful quote for any fee tier")
	}
	return best, nil
}

func (mq *MultiQuoter) EstimateGasUSD(ctx context.Context, ethPrice float64) (float64, error) {
	header, err := mq.ec.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		gp, err := mq.ec.SuggestGasPrice(ctx)
		if err != nil {
			return 0, fmt.Errorf("suggest gas price: %w", err)
		}
		gasWei := new(big.Int).Mul(gp, new(big.Int).SetUint64(mq.cfg.Chain.GasLimitSwap))
		return weiToUSD(gasWei, ethPrice), nil
	}
	tip, err := mq.ec.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(1e9) // fallback to 1 gwei
	}
	eff := new(big.Int).Add(header.BaseFee, tip)
	gasWei := new(big.Int).Mul(eff, new(big.Int).SetUint64(mq.cfg.Chain.GasLimitSwap))
	return weiToUSD(gasWei, ethPrice), nil
}

func (mq *MultiQuoter) getDecimals(ctx context.Context, token common.Address) (int, error) {
	if dec, ok := mq.decimalsCache.Load(token); ok {
		return dec.(int), nil
	}
	dec, err := GetERC20Decimals(ctx, mq.ec, token)
	if err != nil {
		return 0, err
	}
	mq.decimalsCache.Store(token, dec)
	return dec, nil
}
