package domain

import "math/big"

var (
	weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	weiPerGwei  = new(big.Float).SetInt(big.NewInt(1_000_000_000))
)

// WeiToEther renders a wei amount as a decimal ether string.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	value := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return value.Text('f', -1)
}

// WeiToGwei renders a wei amount as a decimal gwei string.
func WeiToGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	value := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerGwei)
	return value.Text('f', -1)
}
