package quoter

import "math/big"

// validate applies the two consistency checks that run after every attempt
// join, over the batches currently in the Success state (§4.4).
//
// Block-height uniformity: if two or more successful batches disagree on
// the block number they were evaluated at, the whole attempt is a
// BlockConflict — every batch is demoted back to Failed, since the retry
// controller responds with a global reset rather than retrying only the
// minority batches. The majority height observed this attempt is returned
// so the retry controller can re-pin to it.
//
// Success-rate floor: a batch whose per-call success rate falls below
// QuoteMinSuccessRate is demoted to Failed with FailureSuccessRateTooLow —
// but only the first time the call sees this violation. Once the call has
// already retried for a success-rate violation once, a still-below-floor
// batch is accepted as Success instead (some pools legitimately have
// low-liquidity quote failures, and retrying forever would never resolve).
func validate(successes []*trackedBatch, minSuccessRate float64, successRateAlreadyRetried bool) (blockConflictMajority *big.Int) {
	majority := demoteBlockConflicts(successes)

	if successRateAlreadyRetried {
		return majority
	}
	for _, b := range successes {
		if b.State != batchSuccess {
			continue
		}
		if b.successRate < minSuccessRate {
			b.State = batchFailed
			b.Failure = newFailure(FailureSuccessRateTooLow, "batch success rate below floor")
		}
	}
	return majority
}

// demoteBlockConflicts finds the majority block height among the given
// batches. With fewer than two distinct block numbers present, there is no
// conflict and nothing is demoted. Otherwise every batch — majority and
// minority alike — is demoted to Failed/BlockConflict: §4.5 responds to a
// block conflict with a full re-plan, not a per-batch retry, so nothing
// from this attempt survives it.
func demoteBlockConflicts(successes []*trackedBatch) *big.Int {
	counts := map[string]int{}
	for _, b := range successes {
		if b.BlockNumber == nil {
			continue
		}
		counts[b.BlockNumber.String()]++
	}
	if len(counts) < 2 {
		return nil
	}

	var majorityKey string
	majorityCount := -1
	for k, c := range counts {
		if c > majorityCount {
			majorityCount = c
			majorityKey = k
		}
	}

	var majority *big.Int
	for _, b := range successes {
		if b.BlockNumber != nil && b.BlockNumber.String() == majorityKey && majority == nil {
			majority = b.BlockNumber
		}
		b.State = batchFailed
		b.Failure = newFailure(FailureBlockConflict, "batch block height diverged from majority")
	}
	return majority
}

// majorityBlockNumber returns the block height agreed on by every
// remaining successful batch, or nil if there are none.
func majorityBlockNumber(successes []*trackedBatch) *big.Int {
	for _, b := range successes {
		if b.State == batchSuccess && b.BlockNumber != nil {
			return b.BlockNumber
		}
	}
	return nil
}
