package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisync/realtime/internal/observability"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Kafka appends events to a topic keyed by user id, keeping one session's
// events on one partition and therefore in order.
type Kafka struct {
	client Producer
	topic  string
}

func NewKafka(client Producer, topic string) *Kafka {
	return &Kafka{client: client, topic: topic}
}

// NewKafkaClient builds a franz-go producer client for the given brokers.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(e.UserID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	k.client.Produce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			observability.SinkErrorsTotal.WithLabelValues("kafka").Inc()
			observability.GetLogger(ctx).Error("sink: kafka produce failed", zap.String("topic", r.Topic), zap.Error(err))
		}
	})
	return nil
}
