package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/garyjia/hei-liquidation/internal/application/port"
)

// ErrNotObtained is returned when the lock stays held by someone else until ctx is done
var ErrNotObtained = errors.New("lock not obtained")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RedisLocker holds locks in Redis so several server processes can share them
type RedisLocker struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	wait    time.Duration
	logger  Logger
}

// RedisConfig tunes lock expiry and retry behaviour
type RedisConfig struct {
	// Prefix namespaces keys, for example "hei-liquidation:lock:"
	Prefix string
	// TTL bounds how long a crashed holder blocks others; live holders refresh it
	TTL time.Duration
	// Backoff is the pause between attempts
	Backoff time.Duration
	// Wait caps the time spent retrying when ctx has no deadline
	Wait time.Duration
}

// NewRedisLocker creates a locker backed by rdb
func NewRedisLocker(rdb redis.UniversalClient, cfg RedisConfig, logger Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 50 * time.Millisecond
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 10 * time.Second
	}

	return &RedisLocker{
		client:  redislock.New(rdb),
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		backoff: cfg.Backoff,
		wait:    cfg.Wait,
		logger:  logger,
	}
}

// Obtain implements port.Locker
func (l *RedisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	obtainCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	lock, err := l.client.Obtain(obtainCtx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lock, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The holder's ctx may already be cancelled; release must still reach Redis
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Error("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive extends the TTL every half period until stop is closed, so a
// slow holder does not lose the lock mid-transaction
func (l *RedisLocker) keepAlive(lock *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Refresh(context.Background(), l.ttl, nil); err != nil {
				l.logger.Error("Failed to refresh lock", "key", key, "error", err)
				return
			}
		}
	}
}

var _ port.Locker = (*RedisLocker)(nil)
