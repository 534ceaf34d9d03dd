package quoter

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alwaysEnergetic/smart-order-router/internal/multicall"
)

// executor runs pending batches against the aggregator and classifies
// whatever comes back into the tracker's per-batch state (§4.2, §4.3).
type executor struct {
	client    multicall.IClient
	direction Direction
}

func newExecutor(client multicall.IClient, direction Direction) *executor {
	return &executor{client: client, direction: direction}
}

// runAttempt fans a set of pending batches out to the aggregator in
// parallel and joins on every one of them before returning, so a caller
// never observes a partially-attempted round (§5).
func (e *executor) runAttempt(ctx context.Context, batches []*trackedBatch, blockNumber *big.Int) {
	if len(batches) == 0 {
		return
	}

	done := make(chan struct{}, len(batches))
	for _, b := range batches {
		b := b
		go func() {
			defer func() { done <- struct{}{} }()
			e.runOne(ctx, b, blockNumber)
		}()
	}
	for i := 0; i < len(batches); i++ {
		<-done
	}
}

func (e *executor) runOne(ctx context.Context, b *trackedBatch, blockNumber *big.Int) {
	b.AttemptCount++

	calls := make([]multicall.Call, len(b.Plan.Calls))
	for i, c := range b.Plan.Calls {
		calls[i] = multicall.Call{
			Target:   common.Address(c.Target),
			GasLimit: c.GasLimit,
			CallData: c.CallData,
		}
	}

	agg, err := e.client.Multicall(ctx, calls, multicall.CallOpts{BlockNumber: blockNumber})
	if err != nil {
		b.State = batchFailed
		b.Failure = newFailure(classifyError(err), err.Error())
		return
	}

	b.BlockNumber = agg.BlockNumber
	b.RawResults = make([]RawQuoteResult, len(agg.Results))

	successCount := 0
	var lastErr error
	for i, r := range agg.Results {
		if !r.Success {
			b.RawResults[i] = RawQuoteResult{Success: false}
			continue
		}
		decoded, derr := unpackQuoteResult(e.direction, r.Data)
		if derr != nil {
			b.RawResults[i] = RawQuoteResult{Success: false}
			lastErr = derr
			continue
		}
		decoded.GasEstimate = orBigInt(decoded.GasEstimate, new(big.Int).SetUint64(r.GasUsed))
		b.RawResults[i] = decoded
		successCount++
	}

	rate := float64(successCount) / float64(len(agg.Results))
	b.successRate = rate

	if successCount == 0 && lastErr != nil {
		b.State = batchFailed
		b.Failure = newFailure(FailureUnknown, lastErr.Error())
		return
	}

	b.State = batchSuccess
}

func orBigInt(v *big.Int, fallback *big.Int) *big.Int {
	if v != nil {
		return v
	}
	return fallback
}

// classifyError maps a raw transport/provider error string to a
// FailureKind, matching substrings in a fixed priority order (§4.2).
func classifyError(err error) FailureKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "header not found"):
		return FailureBlockHeaderMissing
	case strings.Contains(msg, "timeout"):
		return FailureTimeout
	case strings.Contains(msg, "out of gas"):
		return FailureOutOfGas
	default:
		return FailureUnknown
	}
}
