package quoter

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// cellKey identifies one (route, amount) cell in the flattened input space.
type cellKey struct {
	RouteIndex  int
	AmountIndex int
}

// assemble walks every fully-succeeded batch's results back into
// per-route, per-amount QuoteRecords, aligned to the caller's original
// routes and amounts ordering (§4.6). A cell with no corresponding result
// (or whose call failed at the ABI level) becomes an absent QuoteRecord
// carrying only its requested Amount.
func assemble(batches []*trackedBatch, routes []RouteSpec, amounts []Amount, log *zap.Logger) []RouteQuotes {
	results := make(map[cellKey]RawQuoteResult, len(routes)*len(amounts))
	for _, b := range batches {
		for i, pi := range b.Plan.Inputs {
			if i >= len(b.RawResults) {
				continue
			}
			results[cellKey{pi.RouteIndex, pi.AmountIndex}] = b.RawResults[i]
		}
	}

	out := make([]RouteQuotes, len(routes))
	gasSum := new(uint256.Int)
	failedSeen := 0

	for ri, route := range routes {
		quotes := make([]QuoteRecord, len(amounts))
		for ai, amt := range amounts {
			raw, ok := results[cellKey{ri, ai}]
			if !ok || !raw.Success {
				quotes[ai] = QuoteRecord{Amount: amt}
				failedSeen++

				if log != nil && failedSeen%80 == 0 {
					percent := (100 / float64(len(amounts))) * float64(ai+1)
					log.Debug("quoter: failed quote cells",
						zap.Int("route_index", ri),
						zap.Int("failed_seen", failedSeen),
						zap.String("percent", fmt.Sprintf("%.1f%%", percent)),
						zap.String("cumulative_gas_estimate", gasSum.Dec()),
					)
				}
				continue
			}

			quotes[ai] = QuoteRecord{
				Amount:                  amt,
				OutputAmount:            raw.OutputAmount,
				SqrtPriceX96After:       raw.SqrtPriceX96After,
				InitializedTicksCrossed: raw.InitializedTicksCrossed,
				GasEstimate:             raw.GasEstimate,
			}
			if raw.GasEstimate != nil {
				addGas(gasSum, raw.GasEstimate)
			}
		}
		out[ri] = RouteQuotes{Route: route, Quotes: quotes}
	}

	return out
}

// addGas accumulates a *big.Int gas estimate into a running uint256 total,
// used only for the periodic debug-summary log line; gas estimates never
// approach 256 bits so overflow is not a real concern here.
func addGas(sum *uint256.Int, v *big.Int) {
	if v == nil || v.Sign() < 0 {
		return
	}
	delta, overflow := uint256.FromBig(v)
	if overflow {
		return
	}
	sum.Add(sum, delta)
}
