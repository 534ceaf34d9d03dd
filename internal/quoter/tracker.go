package quoter

import "math/big"

// batchState is the Quote State Tracker's per-batch status (§4.3). A batch
// starts Pending, and after one attempt join becomes either Success or
// Failed; a retried batch returns to Pending for the next attempt.
type batchState int

const (
	batchPending batchState = iota
	batchSuccess
	batchFailed
)

// trackedBatch couples a batchPlan with its mutable attempt state: the
// results and block number observed on its most recent attempt, plus the
// gas limit and chunk size it was last (re)planned with. Per-kind retry
// bookkeeping lives on the retryController, not here — it is scoped to the
// whole call, not to one batch (§4.5).
type trackedBatch struct {
	Plan  batchPlan
	State batchState

	BlockNumber *big.Int
	RawResults  []RawQuoteResult
	Failure     *Failure

	GasLimit     uint64
	ChunkSize    int
	AttemptCount int
	successRate  float64
	extraSplits  []batchPlan
}

func newTrackedBatch(p batchPlan, gasLimit uint64) *trackedBatch {
	return &trackedBatch{
		Plan:      p,
		State:     batchPending,
		GasLimit:  gasLimit,
		ChunkSize: len(p.Inputs),
	}
}

// tracker holds every batch for one engine call across every attempt. It is
// not safe for concurrent use by itself; the executor owns synchronization
// around the fan-out/join boundary (§5).
type tracker struct {
	batches []*trackedBatch
}

func newTracker(batches []*trackedBatch) *tracker {
	return &tracker{batches: batches}
}

// pending returns every batch still awaiting an attempt.
func (t *tracker) pending() []*trackedBatch {
	var out []*trackedBatch
	for _, b := range t.batches {
		if b.State == batchPending {
			out = append(out, b)
		}
	}
	return out
}

// partition splits every tracked batch into successes and failures. It must
// only be called once every batch has been attempted at least once; any
// batch still Pending at that point is a tracker invariant violation (§4.3).
func (t *tracker) partition() (successes, failures []*trackedBatch, err error) {
	for _, b := range t.batches {
		switch b.State {
		case batchSuccess:
			successes = append(successes, b)
		case batchFailed:
			failures = append(failures, b)
		default:
			return nil, nil, errPendingAfterJoin
		}
	}
	return successes, failures, nil
}
