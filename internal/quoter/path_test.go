package quoter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestEncodePathSingleHop(t *testing.T) {
	tokenA := common.HexToAddress("0x1")
	tokenB := common.HexToAddress("0x2")
	route := RouteSpec{Pools: []PoolRef{{TokenIn: tokenA, TokenOut: tokenB, Fee: 3000}}}

	encoded := EncodePath(route, false)
	require := assert.New(t)
	require.Len(encoded, 20+3+20)
	require.Equal(tokenA.Bytes(), encoded[:20])
	require.Equal(byte(3000>>16), encoded[20])
	require.Equal(tokenB.Bytes(), encoded[23:])
}

func TestEncodePathReversedForExactOut(t *testing.T) {
	tokenA := common.HexToAddress("0x1")
	tokenB := common.HexToAddress("0x2")
	tokenC := common.HexToAddress("0x3")
	route := RouteSpec{Pools: []PoolRef{
		{TokenIn: tokenA, TokenOut: tokenB, Fee: 500},
		{TokenIn: tokenB, TokenOut: tokenC, Fee: 3000},
	}}

	forward := EncodePath(route, false)
	reversed := EncodePath(route, true)

	assert.Equal(t, tokenA.Bytes(), forward[:20])
	assert.Equal(t, tokenC.Bytes(), forward[len(forward)-20:])

	assert.Equal(t, tokenC.Bytes(), reversed[:20])
	assert.Equal(t, tokenA.Bytes(), reversed[len(reversed)-20:])
}

func TestEncodePathEmptyRoute(t *testing.T) {
	assert.Nil(t, EncodePath(RouteSpec{}, false))
}
