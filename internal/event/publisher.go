// Package event delivers booking events to observers outside the process.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/model"
)

// Publisher announces committed mutations.
type Publisher interface {
	Publish(ctx context.Context, evt model.BookingEvent) error
}

// Nop discards events. Used when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, model.BookingEvent) error { return nil }

// RedisPublisher fans each event out to the global channel and the
// subject's own channel in one pipeline.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt model.BookingEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.EventsChannel(), payload)
	pipe.Publish(ctx, config.CacheKey.SubjectEventsChannel(evt.Subject), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on the global channel, or on one
// subject's channel when subject is non-empty. The caller closes it.
func Subscribe(ctx context.Context, rdb *redis.Client, subject string) *redis.PubSub {
	channel := config.CacheKey.EventsChannel()
	if subject != "" {
		channel = config.CacheKey.SubjectEventsChannel(subject)
	}
	return rdb.Subscribe(ctx, channel)
}
