package common

import "math/big"

// Common big integers often used
var (
	Big0 = big.NewInt(0)
	Big1 = big.NewInt(1)
)
