package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/alwaysEnergetic/smart-order-router/internal/config"
	"github.com/alwaysEnergetic/smart-order-router/internal/metrics"
	"github.com/alwaysEnergetic/smart-order-router/internal/quoter"
)

// routeFile is the on-disk shape of the -routes flag's JSON input: a flat
// list of candidate routes plus the amounts to quote every one of them at.
type routeFile struct {
	Direction string `json:"direction"` // "exact_in" or "exact_out"
	Routes    []struct {
		Pools []struct {
			TokenIn  string `json:"token_in"`
			TokenOut string `json:"token_out"`
			Fee      uint32 `json:"fee"`
		} `json:"pools"`
	} `json:"routes"`
	Amounts []string `json:"amounts"` // decimal strings
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	routesPath := flag.String("routes", "", "path to a JSON file listing routes and amounts to quote")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if *routesPath == "" {
		logger.Fatal("-routes is required")
	}
	rf, err := loadRouteFile(*routesPath)
	if err != nil {
		logger.Fatal("load routes file", zap.Error(err))
	}

	routes, amounts, err := rf.toQuoterInputs()
	if err != nil {
		logger.Fatal("parse routes file", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial rpc", zap.Error(err))
	}

	multicallAddr := common.HexToAddress(cfg.DEX.Multicall)
	if multicallAddr == (common.Address{}) {
		logger.Fatal("dex.multicall is not configured")
	}

	qcfg := cfg.Quoter.ToQuoterConfig()
	quoterAddr := common.HexToAddress(cfg.DEX.QuoterV2)
	if qcfg.QuoterAddressOverride == (common.Address{}) {
		qcfg.QuoterAddressOverride = quoterAddr
	}

	engine, err := quoter.NewEngine(ec, multicallAddr, 0, quoter.DefaultRegistry(), qcfg, logger)
	if err != nil {
		logger.Fatal("build quoter engine", zap.Error(err))
	}

	go metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	var result quoter.Result
	if rf.Direction == "exact_out" {
		result, err = engine.GetQuotesManyExactOut(ctx, routes, amounts)
	} else {
		result, err = engine.GetQuotesManyExactIn(ctx, routes, amounts)
	}
	if err != nil {
		logger.Fatal("fetch quotes", zap.Error(err))
	}

	printResult(result)
}

func loadRouteFile(path string) (routeFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return routeFile{}, err
	}
	var rf routeFile
	if err := json.Unmarshal(b, &rf); err != nil {
		return routeFile{}, err
	}
	return rf, nil
}

func (rf routeFile) toQuoterInputs() ([]quoter.RouteSpec, []quoter.Amount, error) {
	routes := make([]quoter.RouteSpec, len(rf.Routes))
	for i, r := range rf.Routes {
		pools := make([]quoter.PoolRef, len(r.Pools))
		for j, p := range r.Pools {
			pools[j] = quoter.PoolRef{
				TokenIn:  common.HexToAddress(p.TokenIn),
				TokenOut: common.HexToAddress(p.TokenOut),
				Fee:      p.Fee,
			}
		}
		routes[i] = quoter.RouteSpec{Pools: pools}
	}

	amounts := make([]quoter.Amount, len(rf.Amounts))
	for i, raw := range rf.Amounts {
		n, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, nil, fmt.Errorf("amount %q is not a base-10 integer", raw)
		}
		amt, err := quoter.NewAmount(common.Address{}, 0, n)
		if err != nil {
			return nil, nil, err
		}
		amounts[i] = amt
	}

	return routes, amounts, nil
}

func printResult(res quoter.Result) {
	fmt.Printf("block: %s\n", res.BlockNumber)
	for _, rq := range res.RoutesWithQuotes {
		for i, q := range rq.Quotes {
			if !q.Ok() {
				fmt.Printf("route=%v amount_idx=%d FAILED\n", routeLabel(rq.Route), i)
				continue
			}
			fmt.Printf("route=%v amount_idx=%d output=%s gas=%s\n", routeLabel(rq.Route), i, q.OutputAmount, q.GasEstimate)
		}
	}
}

func routeLabel(r quoter.RouteSpec) string {
	if len(r.Pools) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("%s->%s", r.TokenIn().Hex(), r.TokenOut().Hex())
}
