package httpapi

import (
	"math/big"
	"sync"
	"time"

	"wethcycle/internal/domain"
)

// Metrics tracks cycle progress for the status API. It implements the
// runner's observer callbacks.
type Metrics struct {
	mu             sync.RWMutex
	startTime      time.Time
	rounds         int
	wraps          int
	unwraps        int
	skippedUnwraps int
	totalFeeWei    *big.Int
	lastRound      int
	lastKind       string
	lastTxHash     string
	lastBlock      uint64
	lastUpdated    time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		totalFeeWei: new(big.Int),
	}
}

func (m *Metrics) OnOutcome(outcome domain.TxOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch outcome.Kind {
	case domain.TxKindWrap:
		m.wraps++
	case domain.TxKindUnwrap:
		m.unwraps++
	}
	if outcome.FeeWei != nil {
		m.totalFeeWei.Add(m.totalFeeWei, outcome.FeeWei)
	}
	m.lastRound = outcome.Round
	m.lastKind = string(outcome.Kind)
	m.lastTxHash = outcome.TxHash
	m.lastBlock = outcome.BlockNumber
	m.lastUpdated = time.Now()
}

func (m *Metrics) OnRoundDone(result domain.RoundResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds++
	if result.UnwrapSkipped {
		m.skippedUnwraps++
	}
	m.lastUpdated = time.Now()
}

type Snapshot struct {
	StartTime      time.Time
	Rounds         int
	Wraps          int
	Unwraps        int
	SkippedUnwraps int
	TotalFeeWei    string
	LastRound      int
	LastKind       string
	LastTxHash     string
	LastBlock      uint64
	LastUpdated    time.Time
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:      m.startTime,
		Rounds:         m.rounds,
		Wraps:          m.wraps,
		Unwraps:        m.unwraps,
		SkippedUnwraps: m.skippedUnwraps,
		TotalFeeWei:    m.totalFeeWei.String(),
		LastRound:      m.lastRound,
		LastKind:       m.lastKind,
		LastTxHash:     m.lastTxHash,
		LastBlock:      m.lastBlock,
		LastUpdated:    m.lastUpdated,
	}
}
