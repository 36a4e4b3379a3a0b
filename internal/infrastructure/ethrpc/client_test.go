package ethrpc

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestComputeMaxFee(t *testing.T) {
	// 100 gwei base, 2 gwei tip: 112 + 2 gwei.
	base := big.NewInt(100_000_000_000)
	tip := big.NewInt(2_000_000_000)
	got := computeMaxFee(base, tip)
	want := big.NewInt(114_000_000_000)
	if got.Cmp(want) != 0 {
		t.Errorf("expected max fee %s, got %s", want, got)
	}
	// Inputs must not be mutated.
	if base.Cmp(big.NewInt(100_000_000_000)) != 0 {
		t.Errorf("base fee was mutated: %s", base)
	}
}

func TestPadGasLimit(t *testing.T) {
	cases := map[uint64]uint64{
		100_000: 120_000,
		80_000:  96_000,
		21_000:  25_200,
	}
	for estimate, want := range cases {
		if got := padGasLimit(estimate); got != want {
			t.Errorf("padGasLimit(%d): want %d, got %d", estimate, want, got)
		}
	}
}

func TestWETHCalldataSelectors(t *testing.T) {
	deposit, err := depositCalldata()
	if err != nil {
		t.Fatalf("deposit calldata: %v", err)
	}
	if hex.EncodeToString(deposit) != "d0e30db0" {
		t.Errorf("unexpected deposit selector %x", deposit)
	}

	withdraw, err := withdrawCalldata(big.NewInt(1))
	if err != nil {
		t.Fatalf("withdraw calldata: %v", err)
	}
	if hex.EncodeToString(withdraw[:4]) != "2e1a7d4d" {
		t.Errorf("unexpected withdraw selector %x", withdraw[:4])
	}
	if len(withdraw) != 4+32 {
		t.Errorf("unexpected withdraw calldata length %d", len(withdraw))
	}

	balanceOf, err := balanceOfCalldata(common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"))
	if err != nil {
		t.Fatalf("balanceOf calldata: %v", err)
	}
	if hex.EncodeToString(balanceOf[:4]) != "70a08231" {
		t.Errorf("unexpected balanceOf selector %x", balanceOf[:4])
	}
}

func TestWaitForReceipt_Found(t *testing.T) {
	want := &types.Receipt{GasUsed: 21000}
	fetch := func(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
		return want, nil
	}
	got, err := waitForReceipt(context.Background(), fetch, common.Hash{}, time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if got != want {
		t.Errorf("unexpected receipt: %+v", got)
	}
}

func TestWaitForReceipt_TimeoutWhilePolling(t *testing.T) {
	fetch := func(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
		return nil, ethereum.NotFound
	}
	_, err := waitForReceipt(context.Background(), fetch, common.Hash{}, 10*time.Millisecond, time.Hour)
	if err == nil || !strings.Contains(err.Error(), "receipt wait timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should wrap the context error, got %v", err)
	}
}

func TestWaitForReceipt_TimeoutInsideFetch(t *testing.T) {
	// The rpc call itself fails once the deadline passes mid-request.
	fetch := func(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := waitForReceipt(context.Background(), fetch, common.Hash{}, 10*time.Millisecond, time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "receipt wait timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should wrap the context error, got %v", err)
	}
}

func TestWaitForReceipt_FetchErrorPropagates(t *testing.T) {
	rpcErr := errors.New("connection refused")
	fetch := func(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
		return nil, rpcErr
	}
	_, err := waitForReceipt(context.Background(), fetch, common.Hash{}, time.Second, time.Millisecond)
	if !errors.Is(err, rpcErr) {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if strings.Contains(err.Error(), "timed out") {
		t.Errorf("non-timeout failure must not be labeled a timeout: %v", err)
	}
}

func TestUnpackBalance(t *testing.T) {
	raw := make([]byte, 32)
	raw[31] = 42
	balance, err := unpackBalance(raw)
	if err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	if balance.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("expected balance 42, got %s", balance)
	}

	if _, err := unpackBalance([]byte{0x01}); err == nil {
		t.Error("expected error for short output")
	}
}
