package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/totegamma/greenledger"
)

type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaSink publishes events to a topic keyed by record uri, so every event of
// one record lands on the same partition.
type KafkaSink struct {
	client producer
	topic  string
}

func NewKafkaSink(client producer, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

// NewKafkaClient connects to the brokers and makes sure topic exists.
func NewKafkaClient(ctx context.Context, brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "kafka client")
	}

	admin := kadm.NewClient(client)
	responses, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "create topic %s", topic)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, errors.Wrapf(response.Err, "create topic %s", topic)
		}
	}

	return client, nil
}

func (s *KafkaSink) Emit(ctx context.Context, event greenledger.Event) {
	value, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(
			ctx, "failed to encode event",
			slog.String("error", err.Error()),
			slog.String("module", "event"),
		)
		return
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.URI),
		Value: value,
	}

	// the request context may end before the broker acks
	s.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			slog.Error(
				"failed to produce event",
				slog.String("topic", r.Topic),
				slog.String("uri", string(r.Key)),
				slog.String("error", err.Error()),
				slog.String("module", "event"),
			)
		}
	})
}
