package domain

import "math/big"

// FeeQuote holds EIP-1559 fee parameters suggested for the next transaction.
type FeeQuote struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	BaseFee              *big.Int
}

// Summary aggregates a full run of wrap/unwrap rounds.
type Summary struct {
	Rounds         int
	Wraps          int
	Unwraps        int
	SkippedUnwraps int
	TotalFeeWei    *big.Int
}
