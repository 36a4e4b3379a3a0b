package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"wethcycle/internal/domain"
	"wethcycle/internal/infrastructure/journal"
)

type fakeRPC struct {
	err error
}

func (f *fakeRPC) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 1234, nil
}

type fakeStore struct {
	entries []journal.Entry
	total   *big.Int
	pingErr error
}

func (f *fakeStore) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	return f.entries, nil
}

func (f *fakeStore) TotalFee(ctx context.Context) (*big.Int, error) {
	if f.total == nil {
		return big.NewInt(0), nil
	}
	return f.total, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func newTestServer(t *testing.T, rpc RPCStatus, store JournalStore, metrics *Metrics) *Server {
	t.Helper()
	server, err := NewServer(rpc, store, metrics, BuildInfo{Version: "test"}, 1868, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t, &fakeRPC{}, nil, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandleReady(t *testing.T) {
	server := newTestServer(t, &fakeRPC{err: errors.New("down")}, nil, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when rpc is down, got %d", rec.Code)
	}

	server = newTestServer(t, &fakeRPC{}, &fakeStore{pingErr: errors.New("gone")}, nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when journal is down, got %d", rec.Code)
	}

	server = newTestServer(t, &fakeRPC{}, &fakeStore{}, nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	metrics := NewMetrics()
	metrics.OnOutcome(domain.TxOutcome{
		Kind:        domain.TxKindWrap,
		Round:       1,
		TxHash:      "0xaaa",
		BlockNumber: 55,
		FeeWei:      big.NewInt(1_000_000_000_000_000),
	})
	metrics.OnRoundDone(domain.RoundResult{Round: 1, UnwrapSkipped: true})

	server := newTestServer(t, &fakeRPC{}, nil, metrics)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	if status.ChainID != 1868 || status.Rounds != 1 || status.Wraps != 1 || status.SkippedUnwraps != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.TotalFeeWei != "1000000000000000" {
		t.Errorf("unexpected total fee: %s", status.TotalFeeWei)
	}
	if status.TotalFeeEther != "0.001" {
		t.Errorf("unexpected total fee in ether: %s", status.TotalFeeEther)
	}
	if status.LastTxHash != "0xaaa" {
		t.Errorf("unexpected last tx hash: %s", status.LastTxHash)
	}
}

func TestHandleJournal(t *testing.T) {
	server := newTestServer(t, &fakeRPC{}, nil, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with journaling disabled, got %d", rec.Code)
	}

	store := &fakeStore{
		entries: []journal.Entry{{TxHash: "0x1", Kind: "wrap"}},
		total:   big.NewInt(350),
	}
	server = newTestServer(t, &fakeRPC{}, store, nil)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal?limit=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Entries     []journal.Entry `json:"entries"`
		TotalFeeWei string          `json:"total_fee_wei"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid journal payload: %v", err)
	}
	if len(payload.Entries) != 1 || payload.Entries[0].TxHash != "0x1" {
		t.Errorf("unexpected journal entries: %+v", payload.Entries)
	}
	if payload.TotalFeeWei != "350" {
		t.Errorf("unexpected journal total fee: %s", payload.TotalFeeWei)
	}
}

func TestHandleVersion(t *testing.T) {
	server := newTestServer(t, &fakeRPC{}, nil, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid version payload: %v", err)
	}
	if payload["version"] != "test" {
		t.Errorf("unexpected version: %s", payload["version"])
	}
}
