package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/concrnt-community"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event concrnt.Event) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.Publish")
	defer span.End()

	jsonstr, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "failed to publish to %s", channel)
	}

	return nil
}

// Realtime relays events on the channels last sent on request to response.
// Each request replaces the previous subscription. It returns when ctx is
// done or request is closed.
func (s *SignalService) Realtime(ctx context.Context, request <-chan []string, response chan<- concrnt.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var channels []string

	for {
		select {
		case <-ctx.Done():
			return

		case next, ok := <-request:
			if !ok {
				return
			}
			if len(channels) > 0 {
				if err := pubsub.Unsubscribe(ctx, channels...); err != nil {
					slog.ErrorContext(ctx, "failed to unsubscribe", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			channels = next
			if len(channels) > 0 {
				if err := pubsub.Subscribe(ctx, channels...); err != nil {
					slog.ErrorContext(ctx, "failed to subscribe", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}

		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event concrnt.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(ctx, "dropping malformed event", slog.String("channel", msg.Channel), slog.String("module", "signal"))
				continue
			}
			select {
			case response <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
