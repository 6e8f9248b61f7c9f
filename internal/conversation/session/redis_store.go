package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"inquiry-core/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// releaseLock deletes the lock only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares sessions between service instances.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
	newToken func() string
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl, lockTTL, lockWait time.Duration) *RedisStore {
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		lockTTL:  lockTTL,
		lockWait: lockWait,
		newToken: uuid.NewString,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) lockKey(id string) string {
	return r.prefix + "lock:" + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewServiceUnavailableError("session-store", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewProcessingError("session-store", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NewProcessingError("session-store", err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return errors.NewServiceUnavailableError("session-store", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.NewServiceUnavailableError("session-store", err)
	}
	return nil
}

// Lock polls SET NX until the lock is free or lockWait has passed. The lock
// expires on its own after lockTTL so a crashed holder cannot wedge a session.
func (r *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := r.lockKey(id)
	token := r.newToken()
	deadline := time.Now().Add(r.lockWait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, errors.NewServiceUnavailableError("session-store", err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, errors.NewSessionBusyError(id)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = releaseLock.Run(ctx, r.client, []string{key}, token).Err()
		})
	}, nil
}
