package quoter

import "math/big"

// plannedInput is one flattened (route, amount) cell, keeping its position
// in the route-major/amount-minor layout so the assembler can walk the flat
// result vector back into RouteQuotes (§4.1, §4.6).
type plannedInput struct {
	RouteIndex  int
	AmountIndex int
	Input       EncodedInput
}

// batchPlan is one gas-bounded multicall chunk: a contiguous run of
// plannedInputs plus the calls built from them, ready for the executor.
type batchPlan struct {
	Inputs []plannedInput
	Calls  []multicallCall
}

// multicallCall is the executor's view of one on-chain call: calldata plus
// the per-call gas limit the aggregator should enforce.
type multicallCall struct {
	Target   [20]byte
	GasLimit uint64
	CallData []byte
}

// plan flattens routes x amounts into plannedInputs in route-major,
// amount-minor order: every amount for route 0, then every amount for
// route 1, and so on (§4.1).
func plan(routes []RouteSpec, amounts []Amount, direction Direction) ([]plannedInput, error) {
	inputs := make([]plannedInput, 0, len(routes)*len(amounts))
	for ri, route := range routes {
		if len(route.Pools) == 0 {
			return nil, errEmptyRoutePools
		}
		encodedPath := EncodePath(route, direction == ExactOut)
		for ai, amt := range amounts {
			inputs = append(inputs, plannedInput{
				RouteIndex:  ri,
				AmountIndex: ai,
				Input: EncodedInput{
					EncodedPath: encodedPath,
					RawAmount:   new(big.Int).Set(amt.Raw),
				},
			})
		}
	}
	return inputs, nil
}

// chunkSize implements the normalization rule from §4.1: given the total
// input count N and the configured multicall_chunk, compute
// num_chunks = ceil(N / multicall_chunk) and normalized = ceil(N / num_chunks),
// so that every chunk but the last is the same size and no chunk exceeds
// multicall_chunk.
func chunkSize(n, multicallChunk int) int {
	if n <= 0 || multicallChunk <= 0 {
		return n
	}
	numChunks := ceilDiv(n, multicallChunk)
	if numChunks <= 0 {
		numChunks = 1
	}
	return ceilDiv(n, numChunks)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// splitIntoBatches groups plannedInputs into contiguous batchPlans of size
// chunkSize(len(inputs), multicallChunk), building the ABI-encoded call for
// each input as it goes.
func splitIntoBatches(inputs []plannedInput, direction Direction, quoterAddr [20]byte, gasLimit uint64, multicallChunk int) ([]batchPlan, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	size := chunkSize(len(inputs), multicallChunk)
	if size <= 0 {
		size = len(inputs)
	}

	var batches []batchPlan
	for start := 0; start < len(inputs); start += size {
		end := start + size
		if end > len(inputs) {
			end = len(inputs)
		}
		slice := inputs[start:end]

		calls := make([]multicallCall, len(slice))
		for i, pi := range slice {
			data, err := packQuoteCall(direction, pi.Input)
			if err != nil {
				return nil, err
			}
			calls[i] = multicallCall{Target: quoterAddr, GasLimit: gasLimit, CallData: data}
		}

		batches = append(batches, batchPlan{Inputs: slice, Calls: calls})
	}
	return batches, nil
}
