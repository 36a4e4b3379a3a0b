package ethrpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"wethcycle/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	// Gas limits used when eth_estimateGas reverts on some RPC providers.
	wrapGasFallback   = 80_000
	unwrapGasFallback = 100_000

	feeHistoryBlocks = 5
	receiptPollEvery = 500 * time.Millisecond
)

// 0.1 gwei, the priority fee used when eth_feeHistory is unavailable.
var fallbackTipWei = big.NewInt(100_000_000)

type Config struct {
	URL            string
	PrivateKeyHex  string
	FromAddress    string
	WETHAddress    string
	ReceiptTimeout time.Duration
}

// Client signs and submits wrap/unwrap transactions for a single account.
type Client struct {
	eth            *ethclient.Client
	key            *ecdsa.PrivateKey
	sender         common.Address
	weth           common.Address
	chainID        *big.Int
	signer         types.Signer
	receiptTimeout time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rpc url is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	derived := crypto.PubkeyToAddress(key.PublicKey)
	if cfg.FromAddress != "" {
		configured := common.HexToAddress(cfg.FromAddress)
		if configured != derived {
			return nil, fmt.Errorf("FROM_ADDRESS %s does not match key address %s", configured.Hex(), derived.Hex())
		}
	}
	if cfg.WETHAddress == "" {
		return nil, errors.New("weth address is required")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 180 * time.Second
	}

	eth, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc node: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	return &Client{
		eth:            eth,
		key:            key,
		sender:         derived,
		weth:           common.HexToAddress(cfg.WETHAddress),
		chainID:        chainID,
		signer:         types.NewLondonSigner(chainID),
		receiptTimeout: cfg.ReceiptTimeout,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) Sender() common.Address {
	return c.sender
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	return c.chainID.Uint64(), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.sender, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch native balance: %w", err)
	}
	return balance, nil
}

func (c *Client) WrappedBalance(ctx context.Context) (*big.Int, error) {
	calldata, err := balanceOfCalldata(c.sender)
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.sender,
		To:   &c.weth,
		Data: calldata,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return unpackBalance(out)
}

func (c *Client) PendingNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending nonce: %w", err)
	}
	return nonce, nil
}

// SuggestFees derives EIP-1559 parameters from recent fee history and falls
// back to the legacy gas price when the node does not serve eth_feeHistory.
func (c *Client) SuggestFees(ctx context.Context) (domain.FeeQuote, error) {
	history, err := c.eth.FeeHistory(ctx, feeHistoryBlocks, nil, []float64{50})
	if err == nil && len(history.BaseFee) > 0 && len(history.Reward) > 0 && len(history.Reward[len(history.Reward)-1]) > 0 {
		base := history.BaseFee[len(history.BaseFee)-1]
		tip := history.Reward[len(history.Reward)-1][0]
		return domain.FeeQuote{
			MaxFeePerGas:         computeMaxFee(base, tip),
			MaxPriorityFeePerGas: new(big.Int).Set(tip),
			BaseFee:              new(big.Int).Set(base),
		}, nil
	}

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return domain.FeeQuote{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return domain.FeeQuote{
		MaxFeePerGas:         computeMaxFee(price, fallbackTipWei),
		MaxPriorityFeePerGas: new(big.Int).Set(fallbackTipWei),
		BaseFee:              price,
	}, nil
}

// Wrap deposits amount wei of the native coin into the WETH contract.
func (c *Client) Wrap(ctx context.Context, amount *big.Int, nonce uint64) (domain.TxOutcome, error) {
	calldata, err := depositCalldata()
	if err != nil {
		return domain.TxOutcome{}, err
	}
	return c.sendAndWait(ctx, domain.TxKindWrap, calldata, amount, nonce, wrapGasFallback)
}

// Unwrap withdraws amount wei of WETH back into the native coin.
func (c *Client) Unwrap(ctx context.Context, amount *big.Int, nonce uint64) (domain.TxOutcome, error) {
	calldata, err := withdrawCalldata(amount)
	if err != nil {
		return domain.TxOutcome{}, err
	}
	return c.sendAndWait(ctx, domain.TxKindUnwrap, calldata, big.NewInt(0), nonce, unwrapGasFallback)
}

func (c *Client) sendAndWait(ctx context.Context, kind domain.TxKind, calldata []byte, value *big.Int, nonce uint64, gasFallback uint64) (domain.TxOutcome, error) {
	fees, err := c.SuggestFees(ctx)
	if err != nil {
		return domain.TxOutcome{}, err
	}

	estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.sender,
		To:    &c.weth,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		// Some providers revert estimation for payable calls; use the safe fixed limit.
		estimate = gasFallback
	}
	gasLimit := padGasLimit(estimate)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gasLimit,
		To:        &c.weth,
		Value:     value,
		Data:      calldata,
	})
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return domain.TxOutcome{}, fmt.Errorf("failed to sign %s tx: %w", kind, err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return domain.TxOutcome{}, fmt.Errorf("failed to send %s tx: %w", kind, err)
	}

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return domain.TxOutcome{}, fmt.Errorf("%s tx %s: %w", kind, signed.Hash().Hex(), err)
	}

	effectivePrice := receipt.EffectiveGasPrice
	if effectivePrice == nil || effectivePrice.Sign() == 0 {
		effectivePrice = signed.GasFeeCap()
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), effectivePrice)

	return domain.TxOutcome{
		Kind:              kind,
		ChainID:           c.chainID.Uint64(),
		TxHash:            signed.Hash().Hex(),
		BlockNumber:       receipt.BlockNumber.Uint64(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: effectivePrice,
		FeeWei:            fee,
		Status:            receipt.Status,
	}, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return waitForReceipt(ctx, c.eth.TransactionReceipt, hash, c.receiptTimeout, receiptPollEvery)
}

func waitForReceipt(ctx context.Context, fetch func(context.Context, common.Hash) (*types.Receipt, error), hash common.Hash, timeout, pollEvery time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := fetch(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("receipt wait timed out: %w", ctx.Err())
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt wait timed out: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// computeMaxFee mirrors the fee cap heuristic: base fee with a 12% headroom
// plus the full priority fee.
func computeMaxFee(base, tip *big.Int) *big.Int {
	maxFee := new(big.Int).Mul(base, big.NewInt(112))
	maxFee.Div(maxFee, big.NewInt(100))
	return maxFee.Add(maxFee, tip)
}

// padGasLimit adds a 20% margin over the gas estimate.
func padGasLimit(estimate uint64) uint64 {
	return estimate + estimate/5
}
