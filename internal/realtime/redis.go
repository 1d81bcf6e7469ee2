package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBroker publishes events as JSON over Redis PUBLISH/SUBSCRIBE, so every
// API replica sees every session's events.
type RedisBroker struct {
	client *redis.Client
	log    *zap.Logger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

func NewRedisBroker(client *redis.Client, log *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		log:    log,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, string(data)).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed, then delivers messages
// to h from a dedicated goroutine. The returned func stops it and waits for it to exit.
func (b *RedisBroker) Subscribe(ctx context.Context, channel string, h Handler) (func(), error) {
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	b.mu.Lock()
	b.subs[pubsub] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("dropping malformed realtime event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			h(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, pubsub)
			b.mu.Unlock()
			if err := pubsub.Close(); err != nil {
				b.log.Debug("close redis subscription", zap.String("channel", channel), zap.Error(err))
			}
			<-done
		})
	}, nil
}

// Close ends every open subscription. The Redis client itself is owned by the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	var firstErr error
	for ps := range subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
