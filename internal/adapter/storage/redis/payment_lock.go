package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 10 * time.Second
	lockRetryWait = 50 * time.Millisecond
	lockAttempts  = 40
)

// releaseScript deletes the lock key only if it still holds our token, so a
// holder whose lock expired cannot release a competitor's lock.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// PaymentLock implements ports.PaymentLocker using Redis SET NX. One holder
// per payment at a time; the TTL bounds how long a crashed holder can block
// others.
type PaymentLock struct {
	client *goredis.Client
	prefix string
}

// NewPaymentLock creates a Redis-backed payment lock.
func NewPaymentLock(client *goredis.Client) *PaymentLock {
	return &PaymentLock{
		client: client,
		prefix: "paylock:",
	}
}

// Acquire takes the per-payment lock, waiting briefly if another holder has
// it. The returned release func is safe to call after the TTL has passed.
func (l *PaymentLock) Acquire(ctx context.Context, paymentID uuid.UUID) (func(), error) {
	key := l.prefix + paymentID.String()
	token := uuid.NewString()

	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis payment lock: %w", err)
		}
		if ok {
			return func() {
				// Release uses a fresh context: the caller's may already
				// be cancelled by the time the deferred release runs.
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				l.client.Eval(relCtx, releaseScript, []string{key}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis payment lock: %w", ctx.Err())
		case <-time.After(lockRetryWait):
		}
	}
	return nil, fmt.Errorf("redis payment lock: contended for payment %s", paymentID)
}
