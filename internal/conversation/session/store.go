package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"inquiry-core/internal/common/errors"
	flowcontroller "inquiry-core/internal/conversation/flow-controller"
)

// Session is the persisted state of one inquiry.
type Session struct {
	ID               string                         `json:"id"`
	Inquiry          *flowcontroller.InquiryContext `json:"inquiry"`
	Closed           bool                           `json:"closed"`
	LastAssessmentID string                         `json:"lastAssessmentId,omitempty"`
	CreatedAt        time.Time                      `json:"createdAt"`
	UpdatedAt        time.Time                      `json:"updatedAt"`
}

// Store persists sessions. Lock gives per-session mutual exclusion: a second
// caller waits for the holder and fails with SESSION_BUSY once the wait is
// exhausted. The returned unlock function is safe to call more than once.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (func(), error)
}

// ==========================
// In-process
// ==========================

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions as JSON snapshots so callers never share state
// with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	locksMu  sync.Mutex
	locks    map[string]chan struct{}
	ttl      time.Duration
	lockWait time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl, lockWait time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memoryEntry),
		locks:    make(map[string]chan struct{}),
		ttl:      ttl,
		lockWait: lockWait,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || m.expired(entry) {
		return nil, errors.NewSessionNotFoundError(id)
	}

	var s Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, errors.NewProcessingError("session-store", err)
	}
	return &s, nil
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NewProcessingError("session-store", err)
	}
	entry := memoryEntry{data: data}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[s.ID] = entry
	m.mu.Unlock()
	m.Purge()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Purge drops expired sessions and returns how many were removed.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

func (m *MemoryStore) semaphore(id string) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	sem, ok := m.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[id] = sem
	}
	return sem
}

func (m *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	sem := m.semaphore(id)
	select {
	case sem <- struct{}{}:
	default:
		timer := time.NewTimer(m.lockWait)
		defer timer.Stop()
		select {
		case sem <- struct{}{}:
		case <-timer.C:
			return nil, errors.NewSessionBusyError(id)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(func() { <-sem }) }, nil
}
