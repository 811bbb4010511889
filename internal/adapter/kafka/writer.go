package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/lightning-strike-client/internal/config"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes each finalised chunk as one message to a Kafka topic.
// It implements pipeline.ChunkSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured strike topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Compression:  kafkago.Snappy,
	}
	return &Writer{writer: w, logger: logger}
}

// Name implements pipeline.ChunkSink.
func (w *Writer) Name() string { return "kafka" }

// Deliver serializes the chunk's collection and publishes it keyed by
// format and chunk start, so a re-delivered chunk lands on the same
// partition.
func (w *Writer) Deliver(ctx context.Context, r pipeline.ChunkResult) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish chunk %s: %w", r.Interval(), err)
	}
	w.logger.Debug("published chunk",
		"topic", w.writer.Topic,
		"chunk_start", domain.FormatInstant(r.Start),
		"bytes", len(msg.Value),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage renders a chunk result into a Kafka message.
func serializeToMessage(r pipeline.ChunkResult) (kafkago.Message, error) {
	body, err := r.Collection.Bytes()
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize chunk %s: %w", r.Interval(), err)
	}
	format := r.Collection.Format()
	start := domain.FormatInstant(r.Start)
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(xxhash.Sum64String(string(format)+"|"+start), 16)),
		Value: body,
		Headers: []kafkago.Header{
			{Key: "content_type", Value: []byte(format)},
			{Key: "chunk_start", Value: []byte(start)},
			{Key: "chunk_end", Value: []byte(domain.FormatInstant(r.End))},
			{Key: "strikes", Value: []byte(strconv.Itoa(r.Collection.Len()))},
		},
	}, nil
}
