package quoter

// EncodePath packs a route into the Uniswap V3-style path encoding the
// quoter contract expects: 20-byte token address, 3-byte fee, repeated for
// every hop, terminated by the final output token.
//
// When reverse is true (ExactOut routes, §4.1) the pools are traversed back
// to front before encoding, so the on-chain quoter walks from the desired
// output back to the required input.
func EncodePath(route RouteSpec, reverse bool) []byte {
	pools := route.Pools
	if reverse {
		pools = route.reversed()
	}
	if len(pools) == 0 {
		return nil
	}

	out := make([]byte, 0, len(pools)*23+20)
	for _, p := range pools {
		out = append(out, p.TokenIn.Bytes()...)
		feeBytes := encodeFee(p.Fee)
		out = append(out, feeBytes[:]...)
	}
	out = append(out, pools[len(pools)-1].TokenOut.Bytes()...)
	return out
}

func encodeFee(fee uint32) [3]byte {
	var b [3]byte
	b[0] = byte(fee >> 16)
	b[1] = byte(fee >> 8)
	b[2] = byte(fee)
	return b
}
