package diagnosticreasoning

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"inquiry-core/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// History keeps the latest assessments of each patient, newest first.
type History interface {
	Append(ctx context.Context, a *Assessment) error
	List(ctx context.Context, patientID string, limit int) ([]*Assessment, error)
}

type MemoryHistory struct {
	mu    sync.RWMutex
	limit int
	items map[string][]*Assessment
}

func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = 10
	}
	return &MemoryHistory{limit: limit, items: make(map[string][]*Assessment)}
}

func (h *MemoryHistory) Append(_ context.Context, a *Assessment) error {
	if a == nil || a.PatientID == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append([]*Assessment{a}, h.items[a.PatientID]...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	h.items[a.PatientID] = list
	return nil
}

func (h *MemoryHistory) List(_ context.Context, patientID string, limit int) ([]*Assessment, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := h.items[patientID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]*Assessment, limit)
	copy(out, list[:limit])
	return out, nil
}

// RedisHistory stores each patient's assessments as a capped redis list.
type RedisHistory struct {
	client redis.Cmdable
	prefix string
	limit  int
	ttl    time.Duration
}

func NewRedisHistory(client redis.Cmdable, prefix string, limit int, ttl time.Duration) *RedisHistory {
	if limit <= 0 {
		limit = 10
	}
	return &RedisHistory{client: client, prefix: prefix, limit: limit, ttl: ttl}
}

func (h *RedisHistory) key(patientID string) string {
	return h.prefix + patientID
}

func (h *RedisHistory) Append(ctx context.Context, a *Assessment) error {
	if a == nil || a.PatientID == "" {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	key := h.key(a.PatientID)
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(h.limit-1))
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewServiceUnavailableError("assessment-history", err)
	}
	return nil
}

func (h *RedisHistory) List(ctx context.Context, patientID string, limit int) ([]*Assessment, error) {
	if limit <= 0 || limit > h.limit {
		limit = h.limit
	}
	raw, err := h.client.LRange(ctx, h.key(patientID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, errors.NewServiceUnavailableError("assessment-history", err)
	}

	out := make([]*Assessment, 0, len(raw))
	for _, item := range raw {
		var a Assessment
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}
