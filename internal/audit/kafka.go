package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"domicile/internal/platform/metrics"
)

// KafkaEmitter publishes events to a Kafka topic. Production is fully
// asynchronous; delivery failures are observed in the produce callback and
// surface only as a counter and a log line.
type KafkaEmitter struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewKafka connects to the given brokers. The returned emitter owns the
// client; call Close on shutdown to flush buffered records.
func NewKafka(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*KafkaEmitter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaEmitter{client: client, topic: topic, logger: logger, metrics: m}, nil
}

func (e *KafkaEmitter) Emit(ctx context.Context, name EventName, clientID string) {
	event := NewEvent(ctx, name, clientID)
	payload, err := json.Marshal(event)
	if err != nil {
		e.metrics.AuditEmitFailures.Inc()
		e.logger.Error("audit event encode failed", "event_name", name, "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(clientID),
		Value: payload,
	}
	e.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			e.metrics.AuditEmitFailures.Inc()
			e.logger.Error("audit event publish failed",
				"event_name", name, "event_id", event.EventID, "error", err)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (e *KafkaEmitter) Close() {
	e.client.Close()
}

var _ Emitter = (*KafkaEmitter)(nil)
