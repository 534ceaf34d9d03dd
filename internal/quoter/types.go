// Package quoter implements the batched on-chain quote fetcher: it turns a
// set of candidate routes and trade amounts into aggregated multicall
// batches against a concentrated-liquidity quoter contract, retries the
// failures the remote node can throw at it, and reassembles per-(route,
// amount) quotes sampled at one consistent block height.
package quoter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Direction selects which quoter selector a route is encoded and called
// against. ExactOut routes are path-reversed before encoding (§4.1).
type Direction int

const (
	ExactIn Direction = iota
	ExactOut
)

func (d Direction) String() string {
	if d == ExactOut {
		return "exact_out"
	}
	return "exact_in"
}

// PoolRef is one hop of a route: the two assets it swaps between, its fee
// tier, and which of the two assets is the input for this hop.
type PoolRef struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint32
}

// RouteSpec is an ordered, non-empty path between two assets. It is
// immutable for the lifetime of one engine call.
type RouteSpec struct {
	Pools []PoolRef
}

func (r RouteSpec) TokenIn() common.Address {
	if len(r.Pools) == 0 {
		return common.Address{}
	}
	return r.Pools[0].TokenIn
}

func (r RouteSpec) TokenOut() common.Address {
	if len(r.Pools) == 0 {
		return common.Address{}
	}
	return r.Pools[len(r.Pools)-1].TokenOut
}

// reversed returns the pools of the route traversed back to front, with
// each hop's TokenIn/TokenOut swapped, for ExactOut encoding.
func (r RouteSpec) reversed() []PoolRef {
	out := make([]PoolRef, len(r.Pools))
	for i, p := range r.Pools {
		out[len(r.Pools)-1-i] = PoolRef{TokenIn: p.TokenOut, TokenOut: p.TokenIn, Fee: p.Fee}
	}
	return out
}

// Amount is an arbitrary-precision non-negative integer annotated with the
// asset it is denominated in and its decimal scale. It is immutable.
type Amount struct {
	Asset    common.Address
	Decimals int
	Raw      *big.Int
}

// NewAmount constructs an Amount, rejecting negative raw values.
func NewAmount(asset common.Address, decimals int, raw *big.Int) (Amount, error) {
	if raw == nil || raw.Sign() < 0 {
		return Amount{}, errNegativeAmount
	}
	return Amount{Asset: asset, Decimals: decimals, Raw: new(big.Int).Set(raw)}, nil
}

// Hex renders the raw amount as "0x" + hex with no leading-zero
// normalization, the exact encoding the aggregator ABI call expects.
func (a Amount) Hex() string {
	if a.Raw == nil {
		return "0x0"
	}
	return "0x" + a.Raw.Text(16)
}

// EncodedInput is the (path, amount) pair the remote quoter consumes.
type EncodedInput struct {
	EncodedPath []byte
	RawAmount   *big.Int
}

// RawQuoteResult is the per-input reply from the quoter, positionally
// aligned with the EncodedInput it answers.
type RawQuoteResult struct {
	Success                 bool
	OutputAmount            *big.Int
	SqrtPriceX96After       []*big.Int
	InitializedTicksCrossed []uint32
	GasEstimate             *big.Int
}

// FailureKind classifies a batch failure. It is a closed sum type: adding a
// new kind is an enum extension plus a matching Retry Controller arm.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureBlockHeaderMissing
	FailureTimeout
	FailureOutOfGas
	FailureSuccessRateTooLow
	FailureBlockConflict
)

func (k FailureKind) String() string {
	switch k {
	case FailureBlockHeaderMissing:
		return "BlockHeaderMissing"
	case FailureTimeout:
		return "Timeout"
	case FailureOutOfGas:
		return "OutOfGas"
	case FailureSuccessRateTooLow:
		return "SuccessRateTooLow"
	case FailureBlockConflict:
		return "BlockConflict"
	default:
		return "Unknown"
	}
}

// maxFailureMessageLen is the truncation length applied to raw provider
// error strings before they are attached to a Failure (§4.2): provider
// errors routinely echo back full calldata.
const maxFailureMessageLen = 500

// Failure is the typed payload of a Failed batch state.
type Failure struct {
	Kind    FailureKind
	Message string
}

func newFailure(kind FailureKind, message string) *Failure {
	if len(message) > maxFailureMessageLen {
		message = message[:maxFailureMessageLen]
	}
	return &Failure{Kind: kind, Message: message}
}

// QuoteRecord is the per-(route, amount) output. OutputAmount is nil when
// the underlying quoter call for this input failed; the Amount itself is
// always retained.
type QuoteRecord struct {
	Amount                  Amount
	OutputAmount            *big.Int
	SqrtPriceX96After       []*big.Int
	InitializedTicksCrossed []uint32
	GasEstimate             *big.Int
}

func (q QuoteRecord) Ok() bool { return q.OutputAmount != nil }

// RouteQuotes pairs a route with one QuoteRecord per requested amount,
// aligned to the caller's amount order.
type RouteQuotes struct {
	Route  RouteSpec
	Quotes []QuoteRecord
}

// Result is what the engine hands back on a successful call.
type Result struct {
	RoutesWithQuotes []RouteQuotes
	BlockNumber      *big.Int
}
