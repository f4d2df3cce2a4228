package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
)

var (
	// ErrLockHeld is returned when another holder owns the key.
	ErrLockHeld = errors.New("lock is held by another request")
	// ErrLockUnavailable is returned when Redis could not be asked for the lock.
	ErrLockUnavailable = errors.New("lock backend unavailable")
)

type RedisLocker struct {
	sync   *redsync.Redsync
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		sync:   redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		prefix: prefix,
		logger: factory.NewModuleLogger("redis-locker"),
	}
}

// Acquire makes a single attempt to take key. The returned release func is safe to call once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.sync.NewMutex(l.prefix+key, redsync.WithExpiry(l.ttl), redsync.WithTries(1))
	if err := mutex.TryLockContext(ctx); err != nil {
		return nil, classifyAcquireError(err)
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			factory.LoggerWithRequestContext(l.logger, ctx).WithError(err).WithField("key", mutex.Name()).Warn("Failed to release lock")
		}
	}
	return release, nil
}

// classifyAcquireError tells a lock owned by someone else apart from a Redis failure.
func classifyAcquireError(err error) error {
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return ErrLockHeld
	}
	return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
}

func CheckoutKey(studentID, courseID uint64) string {
	return fmt.Sprintf("checkout:%d:%d", studentID, courseID)
}
