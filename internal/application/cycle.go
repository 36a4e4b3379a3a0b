package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"time"

	"wethcycle/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Exchanger submits wrap and unwrap transactions and answers account queries.
type Exchanger interface {
	ChainID(ctx context.Context) (uint64, error)
	NativeBalance(ctx context.Context) (*big.Int, error)
	WrappedBalance(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context) (uint64, error)
	Wrap(ctx context.Context, amount *big.Int, nonce uint64) (domain.TxOutcome, error)
	Unwrap(ctx context.Context, amount *big.Int, nonce uint64) (domain.TxOutcome, error)
}

// Journal records confirmed transactions. Failures are logged, not fatal.
type Journal interface {
	RecordOutcome(ctx context.Context, outcome domain.TxOutcome) error
}

// EventPublisher streams confirmed transactions and the final summary.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.TxOutcome) error
	PublishSummary(ctx context.Context, chainID uint64, summary domain.Summary) error
}

// CycleObserver receives progress callbacks, e.g. for the status API.
type CycleObserver interface {
	OnOutcome(outcome domain.TxOutcome)
	OnRoundDone(result domain.RoundResult)
}

type RunnerConfig struct {
	Rounds        int
	AmountWei     *big.Int
	ChainID       uint64
	SettleDelay   time.Duration
	RoundDelayMin time.Duration
	RoundDelayMax time.Duration
}

// Runner drives wrap/unwrap rounds sequentially, one transaction in flight at
// a time, aborting on the first chain error.
type Runner struct {
	exchanger Exchanger
	journal   Journal
	publisher EventPublisher
	observer  CycleObserver
	cfg       RunnerConfig
}

func NewRunner(exchanger Exchanger, journal Journal, publisher EventPublisher, observer CycleObserver, cfg RunnerConfig) (*Runner, error) {
	if exchanger == nil {
		return nil, errors.New("exchanger is required")
	}
	if cfg.Rounds <= 0 {
		return nil, errors.New("rounds must be positive")
	}
	if cfg.AmountWei == nil || cfg.AmountWei.Sign() <= 0 {
		return nil, errors.New("wrap amount must be positive")
	}
	if cfg.RoundDelayMax < cfg.RoundDelayMin {
		return nil, errors.New("round delay max must not be below min")
	}
	return &Runner{exchanger: exchanger, journal: journal, publisher: publisher, observer: observer, cfg: cfg}, nil
}

func (r *Runner) Run(ctx context.Context) (domain.Summary, error) {
	chainID, err := r.exchanger.ChainID(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	if r.cfg.ChainID != 0 && chainID != r.cfg.ChainID {
		return domain.Summary{}, fmt.Errorf("unexpected chain id %d, want %d", chainID, r.cfg.ChainID)
	}

	balance, err := r.exchanger.NativeBalance(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	if balance.Cmp(r.cfg.AmountWei) <= 0 {
		return domain.Summary{}, fmt.Errorf("native balance %s wei does not cover the per-round amount plus gas", balance)
	}

	nonce, err := r.exchanger.PendingNonce(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	tracer := otel.Tracer("wethcycle/cycle")
	summary := domain.Summary{TotalFeeWei: new(big.Int)}

	for round := 1; round <= r.cfg.Rounds; round++ {
		roundCtx, span := tracer.Start(ctx, "cycle.round")
		span.SetAttributes(
			attribute.Int("round", round),
			attribute.Int64("chain.id", int64(chainID)),
		)

		result, err := r.runRound(roundCtx, span, round, nonce, &summary)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return summary, err
		}
		nonce += uint64(1 + countUnwraps(result))
		span.End()

		summary.Rounds++
		if r.observer != nil {
			r.observer.OnRoundDone(result)
		}

		if round < r.cfg.Rounds {
			if err := r.sleep(ctx, r.roundDelay()); err != nil {
				return summary, err
			}
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishSummary(ctx, chainID, summary); err != nil {
			slog.Warn("summary publish failed", "err", err)
		}
	}
	return summary, nil
}

func (r *Runner) runRound(ctx context.Context, span trace.Span, round int, nonce uint64, summary *domain.Summary) (domain.RoundResult, error) {
	wrap, err := r.exchanger.Wrap(ctx, r.cfg.AmountWei, nonce)
	if err != nil {
		return domain.RoundResult{}, err
	}
	wrap.Round = round
	r.handleOutcome(ctx, wrap, summary)
	span.SetAttributes(attribute.String("wrap.tx_hash", wrap.TxHash))
	summary.Wraps++
	if wrap.Reverted() {
		return domain.RoundResult{}, fmt.Errorf("wrap tx %s reverted", wrap.TxHash)
	}

	// Let slower providers reflect the deposit before reading balanceOf.
	if err := r.sleep(ctx, r.cfg.SettleDelay); err != nil {
		return domain.RoundResult{}, err
	}

	wrapped, err := r.exchanger.WrappedBalance(ctx)
	if err != nil {
		return domain.RoundResult{}, err
	}
	if wrapped.Sign() == 0 {
		slog.Warn("unwrap skipped, wrapped balance is zero", "round", round)
		summary.SkippedUnwraps++
		return domain.RoundResult{Round: round, Wrap: wrap, UnwrapSkipped: true}, nil
	}

	amount := r.cfg.AmountWei
	if wrapped.Cmp(amount) < 0 {
		amount = wrapped
	}

	unwrap, err := r.exchanger.Unwrap(ctx, amount, nonce+1)
	if err != nil {
		return domain.RoundResult{}, err
	}
	unwrap.Round = round
	r.handleOutcome(ctx, unwrap, summary)
	span.SetAttributes(attribute.String("unwrap.tx_hash", unwrap.TxHash))
	summary.Unwraps++
	if unwrap.Reverted() {
		return domain.RoundResult{}, fmt.Errorf("unwrap tx %s reverted", unwrap.TxHash)
	}

	return domain.RoundResult{Round: round, Wrap: wrap, Unwrap: &unwrap}, nil
}

func (r *Runner) handleOutcome(ctx context.Context, outcome domain.TxOutcome, summary *domain.Summary) {
	summary.TotalFeeWei.Add(summary.TotalFeeWei, outcome.FeeWei)

	slog.Info("tx confirmed",
		"kind", string(outcome.Kind),
		"round", outcome.Round,
		"tx", outcome.TxHash,
		"block", outcome.BlockNumber,
		"gas_used", outcome.GasUsed,
		"price_gwei", domain.WeiToGwei(outcome.EffectiveGasPrice),
		"fee_eth", domain.WeiToEther(outcome.FeeWei),
	)

	if r.journal != nil {
		if err := r.journal.RecordOutcome(ctx, outcome); err != nil {
			slog.Warn("journal write failed", "tx", outcome.TxHash, "err", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishOutcome(ctx, outcome); err != nil {
			slog.Warn("event publish failed", "tx", outcome.TxHash, "err", err)
		}
	}
	if r.observer != nil {
		r.observer.OnOutcome(outcome)
	}
}

func (r *Runner) roundDelay() time.Duration {
	delta := r.cfg.RoundDelayMax - r.cfg.RoundDelayMin
	if delta <= 0 {
		return r.cfg.RoundDelayMin
	}
	return r.cfg.RoundDelayMin + time.Duration(rand.Int64N(int64(delta)))
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func countUnwraps(result domain.RoundResult) int {
	if result.Unwrap != nil {
		return 1
	}
	return 0
}
