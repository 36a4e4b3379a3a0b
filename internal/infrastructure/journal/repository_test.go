package journal

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"wethcycle/internal/domain"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func outcome(kind domain.TxKind, round int, hash string, fee int64) domain.TxOutcome {
	return domain.TxOutcome{
		Kind:              kind,
		Round:             round,
		ChainID:           1868,
		TxHash:            hash,
		BlockNumber:       100,
		GasUsed:           45000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
		FeeWei:            big.NewInt(fee),
		Status:            1,
	}
}

func TestRepository_RecordAndQuery(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.RecordOutcome(ctx, outcome(domain.TxKindWrap, 1, "0x1", 100)); err != nil {
		t.Fatalf("record wrap: %v", err)
	}
	if err := repo.RecordOutcome(ctx, outcome(domain.TxKindUnwrap, 1, "0x2", 250)); err != nil {
		t.Fatalf("record unwrap: %v", err)
	}

	total, err := repo.TotalFee(ctx)
	if err != nil {
		t.Fatalf("total fee: %v", err)
	}
	if total.Cmp(big.NewInt(350)) != 0 {
		t.Errorf("expected total fee 350, got %s", total)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].TxHash != "0x2" || entries[0].Kind != "unwrap" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].FeeWei != "100" {
		t.Errorf("unexpected fee on second entry: %s", entries[1].FeeWei)
	}
}

func TestRepository_DuplicateHashIgnored(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.RecordOutcome(ctx, outcome(domain.TxKindWrap, 1, "0xdup", 100)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.RecordOutcome(ctx, outcome(domain.TxKindWrap, 1, "0xdup", 100)); err != nil {
		t.Fatalf("duplicate record should be ignored: %v", err)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after duplicate insert, got %d", len(entries))
	}
}

func TestRepository_Ping(t *testing.T) {
	repo := testRepository(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestNewRepository_Validation(t *testing.T) {
	if _, err := NewRepository("sqlite", ""); err == nil {
		t.Error("expected error for empty dsn")
	}
	if _, err := NewRepository("postgres", "dsn"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
