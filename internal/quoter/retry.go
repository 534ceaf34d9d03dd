package quoter

import "math/big"

// outOfGas fix-up constants from §4.5: the first OutOfGas failure of a call
// lowers the effective gas ceiling and chunk size to these floors,
// regardless of what the caller configured.
const (
	outOfGasGasLimitFloor       = 1_000_000
	outOfGasMulticallChunkFloor = 140
)

// retryController holds the per-call retry state §4.5 describes: whether
// the call has already retried for each FailureKind, whether a
// block-header rollback has already fired, and the effective
// gas_limit_per_call/multicall_chunk the call is currently using (these
// start at the caller's config and can be adjusted in place by OutOfGas
// and SuccessRateTooLow fix-ups). None of this is exhaustion bookkeeping —
// every kind keeps retrying on every occurrence; only the global attempt
// budget in the engine's loop can end the call.
type retryController struct {
	cfg         Config
	blockNumber *big.Int
	quoterAddr  [20]byte
	direction   Direction

	retried         map[FailureKind]bool
	blockRolledBack bool

	currentGasLimit       uint64
	currentMulticallChunk int
}

func newRetryController(cfg Config, blockNumber *big.Int, quoterAddr [20]byte, direction Direction) *retryController {
	return &retryController{
		cfg:                   cfg,
		blockNumber:           blockNumber,
		quoterAddr:            quoterAddr,
		direction:             direction,
		retried:               make(map[FailureKind]bool),
		currentGasLimit:       cfg.GasLimitPerCall,
		currentMulticallChunk: cfg.MulticallChunk,
	}
}

// hasRetried reports whether the call has already retried for kind at
// least once.
func (c *retryController) hasRetried(kind FailureKind) bool {
	return c.retried[kind]
}

// prepareRetries applies the per-kind effect table of §4.5 to every failed
// batch, resetting each to Pending in place, and reports whether any
// effect this round requires a global reset (retry_all): the inputs get
// re-chunked with the (possibly updated) gas limit/chunk size and every
// batch — not just the ones that failed — reverts to Pending.
// blockConflictMajority is the majority block height the validator
// observed this attempt, used to re-pin before the replanned attempt.
func (c *retryController) prepareRetries(failures []*trackedBatch, blockConflictMajority *big.Int) (retryAll bool) {
	for _, b := range failures {
		kind := FailureUnknown
		if b.Failure != nil {
			kind = b.Failure.Kind
		}
		first := !c.retried[kind]
		c.retried[kind] = true

		if c.applyEffect(b, kind, first, blockConflictMajority) {
			retryAll = true
		}

		b.State = batchPending
		b.RawResults = nil
		b.Failure = nil
	}
	return retryAll
}

// applyEffect mutates one batch (and, for OutOfGas, the controller's
// effective gas/chunk settings) per its failure kind, following §4.5's
// per-kind effect table. It reports whether this failure requires a
// global reset.
func (c *retryController) applyEffect(b *trackedBatch, kind FailureKind, first bool, blockConflictMajority *big.Int) bool {
	switch kind {
	case FailureBlockConflict:
		// Both the first and every subsequent sighting re-plan globally at
		// the block height the rest of the batches agreed on this attempt.
		if blockConflictMajority != nil {
			c.blockNumber = blockConflictMajority
		}
		return true

	case FailureBlockHeaderMissing:
		if first {
			// First sighting: the kind is now marked retried; retry only
			// this batch.
			return false
		}
		if c.cfg.Rollback && !c.blockRolledBack && c.blockNumber != nil {
			c.blockNumber = new(big.Int).Sub(c.blockNumber, big.NewInt(1))
			c.blockRolledBack = true
			return true
		}
		return false

	case FailureOutOfGas:
		if first {
			c.currentGasLimit = outOfGasGasLimitFloor
			c.currentMulticallChunk = outOfGasMulticallChunkFloor
			c.reshrinkBatch(b)
		}
		// Retry only the failed batches, never a global reset.
		return false

	case FailureSuccessRateTooLow:
		if !first {
			// The validator already suppresses a second sighting by
			// accepting the batch as Success, so this arm should not be
			// reachable again — no further action if it ever is.
			return false
		}
		if c.cfg.SuccessRateFailureOverrides.GasLimitOverride > 0 {
			c.currentGasLimit = c.cfg.SuccessRateFailureOverrides.GasLimitOverride
		}
		if c.cfg.SuccessRateFailureOverrides.MulticallChunk > 0 {
			c.currentMulticallChunk = c.cfg.SuccessRateFailureOverrides.MulticallChunk
		}
		return true

	case FailureTimeout, FailureUnknown:
		// Retried as-is; only the exponential backoff delay changes.
		return false
	}
	return false
}

// reshrinkBatch re-splits one batch's inputs at the controller's current
// (lowered) chunk size and gas limit, keeping the first sub-chunk as b's
// own plan and stashing the rest as extraSplits for the engine to turn
// into new tracked batches. Used for OutOfGas, which shrinks the chunk
// size without triggering a global reset of every other batch.
func (c *retryController) reshrinkBatch(b *trackedBatch) {
	if c.currentMulticallChunk <= 0 || c.currentMulticallChunk >= b.ChunkSize {
		b.GasLimit = c.currentGasLimit
		for i := range b.Plan.Calls {
			b.Plan.Calls[i].GasLimit = b.GasLimit
		}
		return
	}
	rebuilt, err := splitIntoBatches(b.Plan.Inputs, c.direction, c.quoterAddr, c.currentGasLimit, c.currentMulticallChunk)
	if err != nil || len(rebuilt) == 0 {
		return
	}
	b.Plan = rebuilt[0]
	b.GasLimit = c.currentGasLimit
	b.ChunkSize = len(rebuilt[0].Inputs)
	b.extraSplits = rebuilt[1:]
}

// currentBlockNumber returns the block height the next attempt should be
// run at, after any BlockHeaderMissing rollback or BlockConflict re-pin
// applied this round.
func (c *retryController) currentBlockNumber() *big.Int {
	return c.blockNumber
}
