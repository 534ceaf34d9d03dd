package quoter

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmountRejectsNegative(t *testing.T) {
	_, err := NewAmount(common.HexToAddress("0x1"), 18, big.NewInt(-1))
	assert.ErrorIs(t, err, errNegativeAmount)
}

func TestAmountHexHasNoLeadingZeroNormalization(t *testing.T) {
	a, err := NewAmount(common.HexToAddress("0x1"), 18, big.NewInt(255))
	require.NoError(t, err)
	assert.Equal(t, "0xff", a.Hex())
}

func TestRouteSpecTokenInOut(t *testing.T) {
	tokenA := common.HexToAddress("0x1")
	tokenB := common.HexToAddress("0x2")
	tokenC := common.HexToAddress("0x3")
	route := RouteSpec{Pools: []PoolRef{
		{TokenIn: tokenA, TokenOut: tokenB, Fee: 500},
		{TokenIn: tokenB, TokenOut: tokenC, Fee: 3000},
	}}

	assert.Equal(t, tokenA, route.TokenIn())
	assert.Equal(t, tokenC, route.TokenOut())
}

func TestFailureMessageTruncation(t *testing.T) {
	long := make([]byte, maxFailureMessageLen+50)
	for i := range long {
		long[i] = 'x'
	}
	f := newFailure(FailureUnknown, string(long))
	assert.Len(t, f.Message, maxFailureMessageLen)
}
