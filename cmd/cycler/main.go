package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wethcycle/internal/application"
	"wethcycle/internal/config"
	"wethcycle/internal/domain"
	"wethcycle/internal/infrastructure/ethrpc"
	"wethcycle/internal/infrastructure/journal"
	"wethcycle/internal/infrastructure/kafka"
	"wethcycle/internal/infrastructure/logging"
	"wethcycle/internal/infrastructure/runlock"
	"wethcycle/internal/infrastructure/telemetry"
	"wethcycle/internal/interfaces/httpapi"

	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "cycler",
		Usage:   "wrap and unwrap the native coin through the WETH contract in rounds",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run a single wrap/unwrap round",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "number of wrap/unwrap rounds to run",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("cycler failed", "err", err)
		os.Exit(1)
	}
}

// resolveRounds picks the round count: --once beats --rounds beats the env
// default.
func resolveRounds(once, roundsSet bool, rounds, fallback int) (int, error) {
	if once {
		return 1, nil
	}
	if !roundsSet {
		return fallback, nil
	}
	if rounds <= 0 {
		return 0, errors.New("--rounds must be positive")
	}
	return rounds, nil
}

func run(c *cli.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	rounds, err := resolveRounds(c.Bool("once"), c.IsSet("rounds"), c.Int("rounds"), cfg.Rounds)
	if err != nil {
		return err
	}

	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "wethcycle", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	client, err := ethrpc.NewClient(ctx, ethrpc.Config{
		URL:            cfg.RPCURL,
		PrivateKeyHex:  cfg.PrivateKey,
		FromAddress:    cfg.FromAddress,
		WETHAddress:    cfg.WETHAddress,
		ReceiptTimeout: cfg.ReceiptTimeout,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.RedisAddr != "" {
		lock, err := runlock.New(runlock.Config{
			Addr:    cfg.RedisAddr,
			Address: client.Sender().Hex(),
			TTL:     cfg.LockTTL,
		})
		if err != nil {
			return err
		}
		defer lock.Close()
		if err := lock.Acquire(ctx); err != nil {
			return err
		}
		defer func() {
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer releaseCancel()
			if err := lock.Release(releaseCtx); err != nil {
				slog.Warn("lock release failed", "err", err)
			}
		}()
	}

	var journalPort application.Journal
	var journalStore httpapi.JournalStore
	if cfg.JournalDSN != "" {
		repo, err := journal.NewRepository(cfg.JournalDriver, cfg.JournalDSN)
		if err != nil {
			return err
		}
		defer repo.Close()
		journalPort = repo
		journalStore = repo
	}

	var publisher application.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = producer
	}

	metrics := httpapi.NewMetrics()
	if cfg.HTTPAddr != "" {
		server, err := httpapi.NewServer(client, journalStore, metrics, httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		}, cfg.ChainID, client.Sender().Hex())
		if err != nil {
			return err
		}
		go func() {
			slog.Info("status server listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("status server error", "err", err)
				cancel()
			}
		}()
	}

	runner, err := application.NewRunner(client, journalPort, publisher, metrics, application.RunnerConfig{
		Rounds:        rounds,
		AmountWei:     cfg.WrapAmountWei,
		ChainID:       cfg.ChainID,
		SettleDelay:   cfg.SettleDelay,
		RoundDelayMin: cfg.RoundDelayMin,
		RoundDelayMax: cfg.RoundDelayMax,
	})
	if err != nil {
		return err
	}

	slog.Info("starting cycle",
		"sender", client.Sender().Hex(),
		"chain_id", cfg.ChainID,
		"rounds", rounds,
		"amount_eth", domain.WeiToEther(cfg.WrapAmountWei),
	)

	summary, runErr := runner.Run(ctx)
	slog.Info("run summary",
		"rounds", summary.Rounds,
		"wraps", summary.Wraps,
		"unwraps", summary.Unwraps,
		"skipped_unwraps", summary.SkippedUnwraps,
		"total_fee_eth", domain.WeiToEther(summary.TotalFeeWei),
	)
	return runErr
}
