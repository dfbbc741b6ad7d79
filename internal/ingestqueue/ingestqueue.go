// Package ingestqueue publishes lifecycle stage-transition events onto a
// durable queue for downstream consumers (reindexers, archival jobs,
// audit sinks) that should react to a chunk moving between stages
// without sitting in the query hot path. It is the one-way producer
// side only; nothing in this core consumes from the queue.
package ingestqueue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"nexusmind-core/internal/apperrors"
	"nexusmind-core/internal/domain/chunk"
	"nexusmind-core/internal/domain/shared"
	"nexusmind-core/internal/obslog"
)

// StageTransitionEvent is emitted whenever C1 moves a chunk to a new
// Stage (spec §4.1), letting the tiers that own that chunk's indexing
// (vector upsert/delete, graph edge pruning) react asynchronously.
type StageTransitionEvent struct {
	ChunkID   shared.NodeID `json:"chunk_id"`
	From      chunk.Stage   `json:"from"`
	To        chunk.Stage   `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
}

// messageWriter is the slice of *kafka.Writer this package depends on,
// narrowed to a interface so tests exercise Publish without dialing a
// real broker (grounded on the teacher's own kafka.Writer interface).
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes StageTransitionEvents to one Kafka topic. A nil
// *Producer is valid and Publish becomes a no-op, matching this core's
// pattern of optional infrastructure dependencies (obsmetrics.Registry,
// obslog.Logger).
type Producer struct {
	writer messageWriter
	log    *obslog.Logger
}

// NewProducer builds a Producer writing to topic over brokers (a
// comma-separated list of host:port addresses). Returns nil, nil if
// brokers is empty, letting callers wire this up only when a queue is
// actually configured.
func NewProducer(brokers, topic string, log *obslog.Logger) (*Producer, error) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, nil
	}
	if log == nil {
		log = obslog.New(nil)
	}
	brokerList := strings.Split(brokers, ",")
	for i, b := range brokerList {
		brokerList[i] = strings.TrimSpace(b)
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerList...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: w, log: log}, nil
}


// Publish writes one stage-transition event. A marshal or write failure
// is returned as a PipelineError rather than silently dropped, so the
// caller (the lifecycle sweep) can decide whether to retry or log and
// move on.
func (p *Producer) Publish(ctx context.Context, ev StageTransitionEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return apperrors.New(apperrors.PipelineError, "INGESTQUEUE_MARSHAL_FAILED", "marshaling stage transition event failed").
			WithCause(err).WithStage("lifecycle").Build()
	}
	msg := kafka.Message{
		Key:   []byte(ev.ChunkID),
		Value: payload,
		Time:  ev.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.New(apperrors.PipelineError, "INGESTQUEUE_WRITE_FAILED", "publishing stage transition event failed").
			WithCause(err).WithStage("lifecycle").Build()
	}
	return nil
}

// Close shuts down the underlying writer, flushing any buffered
// messages.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.log.Warn("ingestqueue writer close failed")
		return err
	}
	return nil
}
