package quoter

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// quoterV2ABI matches Uniswap's QuoterV2: multi-hop quoteExactInput/
// quoteExactOutput, each returning the output (or input) amount plus
// per-pool post-swap sqrtPriceX96 and initialized-ticks-crossed arrays and
// a gas estimate (§3 RawQuoteResult, §6).
const quoterV2ABI = `[
{
  "inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountIn","type":"uint256"}],
  "name":"quoteExactInput",
  "outputs":[
    {"internalType":"uint256","name":"amountOut","type":"uint256"},
    {"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},
    {"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},
    {"internalType":"uint256","name":"gasEstimate","type":"uint256"}
  ],
  "stateMutability":"view","type":"function"
},
{
  "inputs":[{"internalType":"bytes","name":"path","type":"bytes"},{"internalType":"uint256","name":"amountOut","type":"uint256"}],
  "name":"quoteExactOutput",
  "outputs":[
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint160[]","name":"sqrtPriceX96AfterList","type":"uint160[]"},
    {"internalType":"uint32[]","name":"initializedTicksCrossedList","type":"uint32[]"},
    {"internalType":"uint256","name":"gasEstimate","type":"uint256"}
  ],
  "stateMutability":"view","type":"function"
}
]`

func mustParseQuoterABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		panic(fmt.Sprintf("quoter: bad embedded ABI: %v", err))
	}
	return parsed
}

var quoterABI = mustParseQuoterABI()

func selectorName(direction Direction) string {
	if direction == ExactOut {
		return "quoteExactOutput"
	}
	return "quoteExactInput"
}

// packQuoteCall builds the ABI-encoded calldata for one EncodedInput. Both
// selectors share the same (path, amount) positional shape; only the
// selector name differs between ExactIn and ExactOut.
func packQuoteCall(direction Direction, in EncodedInput) ([]byte, error) {
	return quoterABI.Pack(selectorName(direction), in.EncodedPath, in.RawAmount)
}

// unpackQuoteResult decodes one successful multicall return value into a
// RawQuoteResult. The first field differs in name between the two
// selectors but is always the leading uint256 (amountOut / amountIn).
func unpackQuoteResult(direction Direction, data []byte) (RawQuoteResult, error) {
	name := selectorName(direction)
	outs, err := quoterABI.Methods[name].Outputs.Unpack(data)
	if err != nil {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: %w", name, err)
	}
	if len(outs) != 4 {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: expected 4 outputs, got %d", name, len(outs))
	}

	outputAmount, ok := outs[0].(*big.Int)
	if !ok {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: unexpected amount type %T", name, outs[0])
	}

	sqrtPrices, ok := outs[1].([]*big.Int)
	if !ok {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: unexpected sqrtPriceX96AfterList type %T", name, outs[1])
	}

	ticks, ok := outs[2].([]uint32)
	if !ok {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: unexpected ticks type %T", name, outs[2])
	}

	gasEstimate, ok := outs[3].(*big.Int)
	if !ok {
		return RawQuoteResult{}, fmt.Errorf("unpack %s: unexpected gas type %T", name, outs[3])
	}

	return RawQuoteResult{
		Success:                 true,
		OutputAmount:            outputAmount,
		SqrtPriceX96After:       sqrtPrices,
		InitializedTicksCrossed: ticks,
		GasEstimate:             gasEstimate,
	}, nil
}
