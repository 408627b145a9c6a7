package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "request:"
	idempotencyKeyTTL    = 24 * time.Hour
	changeChannel        = "ledger:changed"
)

// RedisAdapter implements port.CacheRepository: idempotency keys for
// duplicate-request rejection and a pub/sub feed of ledger change events
// that drives the refresh-triggered background passes.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisAdapter) PublishAccountChanged(ctx context.Context, accountID string) error {
	return r.client.Publish(ctx, changeChannel, accountID).Err()
}

func (r *RedisAdapter) AccountChanges(ctx context.Context) (<-chan string, error) {
	pubsub := r.client.Subscribe(ctx, changeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
