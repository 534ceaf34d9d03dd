package quoter

import "github.com/ethereum/go-ethereum/common"

// AddressRegistry resolves a chain's quoter contract address. An explicit
// QuoterAddressOverride on Config always supersedes it (§6).
type AddressRegistry interface {
	QuoterAddress(chainID uint64) (common.Address, bool)
}

// staticRegistry is a small, process-wide map in the idiom of
// internal/dex/core's venue registry (Register/Get), adapted from a
// venue-id keyed table to a chain-id keyed one.
type staticRegistry struct {
	addrs map[uint64]common.Address
}

// NewStaticRegistry builds an AddressRegistry from a fixed chain-id to
// quoter-address table.
func NewStaticRegistry(addrs map[uint64]common.Address) AddressRegistry {
	cp := make(map[uint64]common.Address, len(addrs))
	for k, v := range addrs {
		cp[k] = v
	}
	return &staticRegistry{addrs: cp}
}

func (r *staticRegistry) QuoterAddress(chainID uint64) (common.Address, bool) {
	addr, ok := r.addrs[chainID]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

// Well-known QuoterV2 deployments, hardcoded in the same style as the
// factory constant in internal/dex/univ3/poolcheck.go.
const (
	ChainIDEthereum = 1
	ChainIDArbitrum = 42161
	ChainIDOptimism = 10
	ChainIDPolygon  = 137
)

// DefaultRegistry returns the registry this repository ships with out of
// the box; callers needing a different address set construct their own via
// NewStaticRegistry.
func DefaultRegistry() AddressRegistry {
	return NewStaticRegistry(map[uint64]common.Address{
		ChainIDEthereum: common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		ChainIDArbitrum: common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		ChainIDOptimism: common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		ChainIDPolygon:  common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
	})
}
