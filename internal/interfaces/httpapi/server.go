package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"wethcycle/internal/domain"
	"wethcycle/internal/infrastructure/journal"
)

type JournalStore interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	TotalFee(ctx context.Context) (*big.Int, error)
	Ping(ctx context.Context) error
}

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server exposes run progress while a cycle is in flight. The journal store
// is optional; /journal returns 404 when journaling is disabled.
type Server struct {
	rpc       RPCStatus
	store     JournalStore
	metrics   *Metrics
	buildInfo BuildInfo
	chainID   uint64
	sender    string
}

func NewServer(rpc RPCStatus, store JournalStore, metrics *Metrics, buildInfo BuildInfo, chainID uint64, sender string) (*Server, error) {
	if rpc == nil {
		return nil, errors.New("rpc status dependency must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{rpc: rpc, store: store, metrics: metrics, buildInfo: buildInfo, chainID: chainID, sender: sender}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/journal", s.handleJournal)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "journal not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	ChainID        uint64    `json:"chain_id"`
	Sender         string    `json:"sender"`
	StartTime      time.Time `json:"start_time"`
	Rounds         int       `json:"rounds"`
	Wraps          int       `json:"wraps"`
	Unwraps        int       `json:"unwraps"`
	SkippedUnwraps int       `json:"skipped_unwraps"`
	TotalFeeWei    string    `json:"total_fee_wei"`
	TotalFeeEther  string    `json:"total_fee_ether"`
	LastRound      int       `json:"last_round,omitempty"`
	LastKind       string    `json:"last_kind,omitempty"`
	LastTxHash     string    `json:"last_tx_hash,omitempty"`
	LastBlock      uint64    `json:"last_block,omitempty"`
	LastUpdated    time.Time `json:"last_updated,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.Snapshot()
	totalEther := "0"
	if total, ok := newBigInt(snapshot.TotalFeeWei); ok {
		totalEther = domain.WeiToEther(total)
	}
	respondJSON(w, http.StatusOK, statusResponse{
		ChainID:        s.chainID,
		Sender:         s.sender,
		StartTime:      snapshot.StartTime,
		Rounds:         snapshot.Rounds,
		Wraps:          snapshot.Wraps,
		Unwraps:        snapshot.Unwraps,
		SkippedUnwraps: snapshot.SkippedUnwraps,
		TotalFeeWei:    snapshot.TotalFeeWei,
		TotalFeeEther:  totalEther,
		LastRound:      snapshot.LastRound,
		LastKind:       snapshot.LastKind,
		LastTxHash:     snapshot.LastTxHash,
		LastBlock:      snapshot.LastBlock,
		LastUpdated:    snapshot.LastUpdated,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	total, err := s.store.TotalFee(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entries":       entries,
		"total_fee_wei": total.String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version":    s.buildInfo.Version,
		"commit":     s.buildInfo.Commit,
		"build_time": s.buildInfo.BuildTime,
	})
}

func newBigInt(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
