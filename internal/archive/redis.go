package archive

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Optimistic-lock retry policy for colliding writers. Retries stop at
// maxTxAttempts or when ctx is done, whichever comes first.
const (
	maxTxAttempts = 100
	txBackoffBase = 2 * time.Millisecond
	txBackoffMax  = 200 * time.Millisecond
)

// redisBackend stores the dataset document under one key. Updates use
// WATCH/MULTI so concurrent writers from separate processes retry instead of
// overwriting each other. Writers in the same process queue on mu.
type redisBackend struct {
	mu     sync.Mutex
	client *redis.Client
	key    string
}

// NewRedisStore opens an archive stored at key in the redis server described
// by opts. The connection is checked with PING.
func NewRedisStore(ctx context.Context, opts *redis.Options, key string, storeOpts ...Option) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("archive redis key is required")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping redis at %s: %w", ErrPersistence, opts.Addr, err)
	}
	return newStore(&redisBackend{client: client, key: key}, storeOpts...), nil
}

func (b *redisBackend) name() string { return "redis" }

func (b *redisBackend) read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (b *redisBackend) update(ctx context.Context, fn func([]byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, b.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, b.key, next, 0)
			return nil
		})
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := b.client.Watch(ctx, txf, b.key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		timer := time.NewTimer(txBackoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis transaction on %s: %w", b.key, ctx.Err())
		}
	}
	return fmt.Errorf("redis transaction on %s: too many conflicting writers", b.key)
}

// txBackoff returns a full-jitter delay for the given retry attempt.
func txBackoff(attempt int) time.Duration {
	ceiling := txBackoffMax
	if attempt < 16 {
		if d := txBackoffBase << attempt; d < ceiling {
			ceiling = d
		}
	}
	return time.Duration(rand.Int64N(int64(ceiling))) + time.Millisecond
}

func (b *redisBackend) close() error {
	return b.client.Close()
}
