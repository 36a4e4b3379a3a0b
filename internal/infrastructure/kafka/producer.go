package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wethcycle/internal/domain"
	"wethcycle/internal/infrastructure/telemetry"
	"wethcycle/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Producer publishes one message per confirmed transaction plus a final
// summary, on topic <prefix>-<chainID>.
type Producer struct {
	writer *kafka.Writer
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "wethcycle-txs"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishOutcome(ctx context.Context, outcome domain.TxOutcome) error {
	tracer := otel.Tracer("wethcycle/kafka")

	traceID, traceIDHex, ok := telemetry.NewTraceID()
	traceCtx := ctx
	if ok {
		if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
			traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
		}
	} else {
		traceIDHex = ""
	}
	traceCtx, span := tracer.Start(traceCtx, "cycle.publish_outcome", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("tx.kind", string(outcome.Kind)),
		attribute.Int("round", outcome.Round),
		attribute.Int64("chain.id", int64(outcome.ChainID)),
		attribute.String("tx.hash", outcome.TxHash),
	)

	payload, err := streaming.Encode(streaming.Message{
		Type:              messageType(outcome.Kind),
		ChainID:           outcome.ChainID,
		TraceID:           traceIDHex,
		Round:             outcome.Round,
		TxHash:            outcome.TxHash,
		BlockNumber:       outcome.BlockNumber,
		GasUsed:           outcome.GasUsed,
		EffectiveGasPrice: outcome.EffectiveGasPrice.String(),
		FeeWei:            outcome.FeeWei.String(),
		Status:            outcome.Status,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicForChain(outcome.ChainID),
		Key:     []byte(outcome.TxHash),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) PublishSummary(ctx context.Context, chainID uint64, summary domain.Summary) error {
	payload, err := streaming.Encode(streaming.Message{
		Type:           streaming.MessageTypeSummary,
		ChainID:        chainID,
		Rounds:         summary.Rounds,
		Wraps:          summary.Wraps,
		Unwraps:        summary.Unwraps,
		SkippedUnwraps: summary.SkippedUnwraps,
		TotalFeeWei:    summary.TotalFeeWei.String(),
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicForChain(chainID),
		Key:   []byte("summary"),
		Value: payload,
	})
}

func (p *Producer) topicForChain(chainID uint64) string {
	return fmt.Sprintf("%s-%d", p.prefix, chainID)
}

func messageType(kind domain.TxKind) streaming.MessageType {
	if kind == domain.TxKindUnwrap {
		return streaming.MessageTypeUnwrap
	}
	return streaming.MessageTypeWrap
}
