package quoter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 0, chunkSize(0, 10))
	assert.Equal(t, 10, chunkSize(10, 100))
}

func TestChunkSizeNormalizesEvenly(t *testing.T) {
	// N=10, multicall_chunk=3: num_chunks=ceil(10/3)=4, normalized=ceil(10/4)=3.
	got := chunkSize(10, 3)
	assert.Equal(t, 3, got)
}

func TestPlanFlattensRouteMajorAmountMinor(t *testing.T) {
	routes := []RouteSpec{oneHopRoute(), oneHopRoute()}
	amounts := []Amount{mustAmount(t, 1), mustAmount(t, 2), mustAmount(t, 3)}

	inputs, err := plan(routes, amounts, ExactIn)
	require.NoError(t, err)
	require.Len(t, inputs, 6)

	assert.Equal(t, 0, inputs[0].RouteIndex)
	assert.Equal(t, 0, inputs[0].AmountIndex)
	assert.Equal(t, 0, inputs[2].RouteIndex)
	assert.Equal(t, 2, inputs[2].AmountIndex)
	assert.Equal(t, 1, inputs[3].RouteIndex)
	assert.Equal(t, 0, inputs[3].AmountIndex)
}

func TestPlanRejectsEmptyRoute(t *testing.T) {
	routes := []RouteSpec{{Pools: nil}}
	amounts := []Amount{mustAmount(t, 1)}

	_, err := plan(routes, amounts, ExactIn)
	assert.ErrorIs(t, err, errEmptyRoutePools)
}

func TestSplitIntoBatchesProducesChunksOfNormalizedSize(t *testing.T) {
	inputs := make([]plannedInput, 10)
	for i := range inputs {
		inputs[i] = plannedInput{
			RouteIndex:  0,
			AmountIndex: i,
			Input:       EncodedInput{EncodedPath: []byte{1, 2, 3}, RawAmount: mustAmount(t, 1).Raw},
		}
	}

	batches, err := splitIntoBatches(inputs, ExactIn, [20]byte(common.HexToAddress("0xdead")), 7_000_000, 3)
	require.NoError(t, err)

	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.Inputs), 3)
		total += len(b.Inputs)
	}
	assert.Equal(t, 10, total)
}
