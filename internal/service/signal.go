package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/nftsurface"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event nftsurface.Event) error {

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

// EventChannel is the redis pubsub channel carrying ledger events.
const EventChannel = "nftsurface:events"

// EventFeed binds a SignalService to a fixed channel so the usecases can
// announce transitions without knowing the transport topology.
type EventFeed struct {
	signal  *SignalService
	channel string
}

func NewEventFeed(signal *SignalService) *EventFeed {
	return &EventFeed{
		signal:  signal,
		channel: EventChannel,
	}
}

func (f *EventFeed) Publish(ctx context.Context, event nftsurface.Event) error {
	return f.signal.Publish(ctx, f.channel, event)
}

// Subscribe streams ledger events published on the given channel until ctx
// is cancelled.
func (s *SignalService) Subscribe(ctx context.Context, channel string) (<-chan nftsurface.Event, error) {

	pubsub := s.rdb.Subscribe(ctx, channel)
	events := make(chan nftsurface.Event)

	go func() {
		defer pubsub.Close()
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var event nftsurface.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
