package quoter

import "math/big"

// EncodeQuoteExactInputResultForTest ABI-encodes a quoteExactInput return
// value the way the on-chain quoter would, for use by other packages'
// tests that drive a fake multicall.IClient.
func EncodeQuoteExactInputResultForTest(amountOut int64, sqrtPricesX96 []int64, ticksCrossed []uint32, gasEstimate int64) ([]byte, error) {
	prices := make([]*big.Int, len(sqrtPricesX96))
	for i, p := range sqrtPricesX96 {
		prices[i] = big.NewInt(p)
	}
	return quoterABI.Methods["quoteExactInput"].Outputs.Pack(
		big.NewInt(amountOut),
		prices,
		ticksCrossed,
		big.NewInt(gasEstimate),
	)
}
