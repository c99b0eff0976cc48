// Package session persists each visitor's selection state between
// interactions. A session is keyed by an opaque UUID carried in a cookie or
// in the API path.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/selection"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/redis"
)

// Store loads and saves selection state by session ID. Get returns
// ErrSessionNotFound for unknown or expired sessions.
type Store interface {
	Get(ctx context.Context, id string) (selection.State, error)
	Save(ctx context.Context, id string, s selection.State) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type memoryEntry struct {
	state   selection.State
	expires time.Time
}

// MemoryStore keeps sessions in process memory with a sliding TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (selection.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return selection.State{}, apperrors.ErrSessionNotFound
	}
	now := m.now()
	if now.After(e.expires) {
		delete(m.entries, id)
		return selection.State{}, apperrors.ErrSessionNotFound
	}
	e.expires = now.Add(m.ttl)
	m.entries[id] = e
	return e.state, nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, s selection.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{state: s, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live and not-yet-swept sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisStore keeps sessions as JSON in Redis so any web replica can serve
// any visitor.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "salary:session:"}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (selection.State, error) {
	raw, err := r.client.GetEx(ctx, r.key(id), r.ttl)
	if err != nil {
		if redis.IsNilError(err) {
			return selection.State{}, apperrors.ErrSessionNotFound
		}
		return selection.State{}, fmt.Errorf("reading session %s: %w", id, err)
	}
	var s selection.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return selection.State{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, s selection.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	if err := r.client.Set(ctx, r.key(id), raw, r.ttl); err != nil {
		return fmt.Errorf("writing session %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}
