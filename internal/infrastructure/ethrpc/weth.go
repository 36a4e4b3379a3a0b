package ethrpc

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Minimal WETH9 surface: everything the cycle needs.
const wethABIJSON = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var wethABI = mustParseABI(wethABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("weth abi: " + err.Error())
	}
	return parsed
}

func depositCalldata() ([]byte, error) {
	return wethABI.Pack("deposit")
}

func withdrawCalldata(amount *big.Int) ([]byte, error) {
	return wethABI.Pack("withdraw", amount)
}

func balanceOfCalldata(owner common.Address) ([]byte, error) {
	return wethABI.Pack("balanceOf", owner)
}

func unpackBalance(data []byte) (*big.Int, error) {
	values, err := wethABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, errors.New("unexpected balanceOf output")
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("balanceOf output is not uint256")
	}
	return balance, nil
}
