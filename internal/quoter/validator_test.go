package quoter

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSuccessBatch(block int64, rate float64) *trackedBatch {
	b := newTrackedBatch(batchPlan{}, 0)
	b.State = batchSuccess
	b.BlockNumber = big.NewInt(block)
	b.successRate = rate
	return b
}

func TestValidateDemotesEveryBatchOnBlockConflict(t *testing.T) {
	a := newSuccessBatch(100, 1.0)
	b := newSuccessBatch(100, 1.0)
	c := newSuccessBatch(101, 1.0)

	majority := validate([]*trackedBatch{a, b, c}, 0.2, false)

	assert.Equal(t, batchFailed, a.State)
	assert.Equal(t, batchFailed, b.State)
	assert.Equal(t, batchFailed, c.State)
	assert.Equal(t, FailureBlockConflict, a.Failure.Kind)
	assert.Equal(t, FailureBlockConflict, c.Failure.Kind)
	require.NotNil(t, majority)
	assert.Equal(t, 0, big.NewInt(100).Cmp(majority))
}

func TestValidateNoConflictWithSingleBlock(t *testing.T) {
	a := newSuccessBatch(100, 1.0)
	b := newSuccessBatch(100, 1.0)

	majority := validate([]*trackedBatch{a, b}, 0.2, false)

	assert.Equal(t, batchSuccess, a.State)
	assert.Equal(t, batchSuccess, b.State)
	assert.Nil(t, majority)
}

func TestValidateDemotesBelowSuccessRateFloorOnFirstSighting(t *testing.T) {
	a := newSuccessBatch(100, 0.1)

	validate([]*trackedBatch{a}, 0.2, false)

	assert.Equal(t, batchFailed, a.State)
	assert.Equal(t, FailureSuccessRateTooLow, a.Failure.Kind)
}

func TestValidateAcceptsBelowFloorOnceAlreadyRetried(t *testing.T) {
	a := newSuccessBatch(100, 0.1)

	validate([]*trackedBatch{a}, 0.2, true)

	assert.Equal(t, batchSuccess, a.State)
	assert.Nil(t, a.Failure)
}

func TestMajorityBlockNumber(t *testing.T) {
	a := newSuccessBatch(100, 1.0)
	assert.Equal(t, 0, big.NewInt(100).Cmp(majorityBlockNumber([]*trackedBatch{a})))
}
