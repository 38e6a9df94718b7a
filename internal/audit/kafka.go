package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "chainscreen/pkg/domain-errors"
)

// KafkaSink publishes audit events to a Kafka topic, keyed by decision ID so
// all events for one decision land on the same partition in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures a KafkaSink.
type KafkaOption func(*KafkaSink)

// WithKafkaLogger sets the structured logger.
func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(s *KafkaSink) { s.logger = logger }
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, dErrors.NewField(dErrors.CodeConfig, "brokers", "at least one kafka broker is required")
	}
	if topic == "" {
		return nil, dErrors.NewField(dErrors.CodeConfig, "topic", "kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "creating kafka client")
	}

	s := &KafkaSink{client: client, topic: topic}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *KafkaSink) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, s.topic)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfig, "creating audit topic")
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return dErrors.Wrap(res.Err, dErrors.CodeConfig, "creating audit topic")
		}
	}
	return nil
}

// Append implements Sink. The produce is synchronous; callers that cannot
// tolerate broker latency should front this sink with a Worker.
func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding audit event")
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.DecisionID.String()),
		Value: raw,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "publishing audit event")
	}
	return nil
}

// Close flushes pending records and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
