package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/greenledger"
)

const channelPrefix = "greenledger:"

// Channel is the pub/sub channel carrying events of one registry.
func Channel(registry string) string {
	return channelPrefix + registry
}

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event greenledger.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Emit publishes the event on its registry channel. Failures are only logged.
func (s *SignalService) Emit(ctx context.Context, event greenledger.Event) {
	err := s.Publish(context.WithoutCancel(ctx), Channel(event.Registry), event)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("registry", event.Registry),
			slog.String("error", err.Error()),
			slog.String("module", "signal"),
		)
	}
}

// Realtime forwards events of the registries most recently received on input
// to output until ctx ends or input is closed. Each new registry list
// replaces the previous subscription.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- greenledger.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var current []string

	for {
		select {
		case <-ctx.Done():
			return
		case registries, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "unsubscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			current = make([]string, 0, len(registries))
			for _, registry := range registries {
				current = append(current, Channel(registry))
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(ctx, "subscribe failed", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event greenledger.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(ctx, "malformed event", slog.String("channel", msg.Channel), slog.String("module", "signal"))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
