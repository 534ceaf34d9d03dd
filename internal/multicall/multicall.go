// Package multicall wraps an on-chain aggregator contract ("Multicall"
// style) that batches many view calls into a single eth_call and returns
// the block height the calls were evaluated at alongside per-call
// success/gas/data.
package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// multicallABI matches a contract exposing:
//
//	struct Call    { address target; uint256 gasLimit; bytes callData; }
//	struct Result  { bool success; uint256 gasUsed; bytes returnData; }
//	function multicall(Call[] calls) returns (uint256 blockNumber, Result[] returnData)
const multicallABI = `[
{
    "inputs": [
        {
            "components": [
                {"internalType": "address", "name": "target", "type": "address"},
                {"internalType": "uint256", "name": "gasLimit", "type": "uint256"},
                {"internalType": "bytes", "name": "callData", "type": "bytes"}
            ],
            "internalType": "struct Multicall.Call[]",
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "multicall",
    "outputs": [
        {"internalType": "uint256", "name": "blockNumber", "type": "uint256"},
        {
            "components": [
                {"internalType": "bool", "name": "success", "type": "bool"},
                {"internalType": "uint256", "name": "gasUsed", "type": "uint256"},
                {"internalType": "bytes", "name": "returnData", "type": "bytes"}
            ],
            "internalType": "struct Multicall.Result[]",
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "stateMutability": "view",
    "type": "function"
}
]`

// Call is a single aggregated view call. GasLimit is a per-call override
// forwarded to the underlying multicall contract; zero means the contract's
// own default applies.
type Call struct {
	Target   common.Address
	GasLimit uint64
	CallData []byte
}

// Result is a per-call outcome, positionally aligned with the Calls slice
// passed to Multicall.
type Result struct {
	Success bool
	GasUsed uint64
	Data    []byte
}

// AggregateResult is the full reply from one Multicall invocation.
type AggregateResult struct {
	BlockNumber *big.Int
	Results     []Result
}

// CallOpts pins the block the aggregator should evaluate against. A nil
// BlockNumber means "latest".
type CallOpts struct {
	BlockNumber *big.Int
}

// IClient is the collaborator interface described by the on-chain multicall
// aggregator: callers depend on this, not on *Client.
type IClient interface {
	Multicall(ctx context.Context, calls []Call, opts CallOpts) (AggregateResult, error)
}

type Client struct {
	c    *ethclient.Client
	addr common.Address
	abi  abi.ABI
}

func New(c *ethclient.Client, multicallAddr common.Address) (IClient, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{c: c, addr: multicallAddr, abi: parsedABI}, nil
}

type abiCall struct {
	Target   common.Address
	GasLimit *big.Int
	CallData []byte
}

type abiResult struct {
	Success    bool
	GasUsed    *big.Int
	ReturnData []byte
}

func (c *Client) Multicall(ctx context.Context, calls []Call, opts CallOpts) (AggregateResult, error) {
	abiCalls := make([]abiCall, len(calls))
	for i, call := range calls {
		gasLimit := new(big.Int)
		if call.GasLimit != 0 {
			gasLimit.SetUint64(call.GasLimit)
		}
		abiCalls[i] = abiCall{
			Target:   call.Target,
			GasLimit: gasLimit,
			CallData: call.CallData,
		}
	}

	payload, err := c.abi.Pack("multicall", abiCalls)
	if err != nil {
		return AggregateResult{}, fmt.Errorf("pack multicall: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, opts.BlockNumber)
	if err != nil {
		return AggregateResult{}, fmt.Errorf("call multicall: %w", err)
	}

	var out struct {
		BlockNumber *big.Int
		ReturnData  []abiResult
	}
	if err := c.abi.UnpackIntoInterface(&out, "multicall", res); err != nil {
		return AggregateResult{}, fmt.Errorf("unpack multicall: %w", err)
	}

	results := make([]Result, len(out.ReturnData))
	for i, r := range out.ReturnData {
		var gasUsed uint64
		if r.GasUsed != nil {
			gasUsed = r.GasUsed.Uint64()
		}
		results[i] = Result{Success: r.Success, GasUsed: gasUsed, Data: r.ReturnData}
	}

	return AggregateResult{BlockNumber: out.BlockNumber, Results: results}, nil
}
