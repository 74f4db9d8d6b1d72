package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"github.com/tzuhan-lo/namecard-bot/internal/session"
)

const scanBatchSize = 100

var _ session.Backend = (*SessionBackend)(nil)

// SessionBackend adapts a Redis client to the session store's durable
// key-value port. Timeouts are the client's own; no retries here.
type SessionBackend struct {
	client *goredis.Client
}

func NewSessionBackend(client *goredis.Client) (*SessionBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &SessionBackend{client: client}, nil
}

func (b *SessionBackend) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return payload, nil
}

func (b *SessionBackend) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if err := b.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *SessionBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := b.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (b *SessionBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}
