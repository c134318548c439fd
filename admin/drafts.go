package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cabinsite/settings"
)

// DraftTTL bounds how long an unsaved settings draft survives.
const DraftTTL = 24 * time.Hour

// DraftStore keeps the per-session settings draft edited across console tabs.
type DraftStore interface {
	Get(ctx context.Context, id string) (settings.Content, bool, error)
	Put(ctx context.Context, id string, content settings.Content) error
	Delete(ctx context.Context, id string) error
}

type memoryDraft struct {
	content settings.Content
	expires time.Time
}

type MemoryDrafts struct {
	mu     sync.Mutex
	drafts map[string]memoryDraft
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDrafts(ttl time.Duration) *MemoryDrafts {
	return &MemoryDrafts{drafts: make(map[string]memoryDraft), ttl: ttl, now: time.Now}
}

func (m *MemoryDrafts) Get(_ context.Context, id string) (settings.Content, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok || m.now().After(d.expires) {
		delete(m.drafts, id)
		return settings.Content{}, false, nil
	}
	return cloneContent(d.content), true, nil
}

func (m *MemoryDrafts) Put(_ context.Context, id string, content settings.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, d := range m.drafts {
		if now.After(d.expires) {
			delete(m.drafts, k)
		}
	}
	m.drafts[id] = memoryDraft{content: cloneContent(content), expires: now.Add(m.ttl)}
	return nil
}

func (m *MemoryDrafts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.drafts, id)
	m.mu.Unlock()
	return nil
}

func cloneContent(c settings.Content) settings.Content {
	c.Features = append([]settings.Feature(nil), c.Features...)
	c.Gallery = append([]string(nil), c.Gallery...)
	return c
}

// RedisDrafts keeps drafts in Redis so they survive restarts and are shared
// between instances.
type RedisDrafts struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDrafts connects to url and verifies the connection.
func NewRedisDrafts(ctx context.Context, url string, ttl time.Duration) (*RedisDrafts, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisDrafts{rdb: rdb, ttl: ttl, prefix: "cabins:draft:"}, nil
}

func (r *RedisDrafts) Get(ctx context.Context, id string) (settings.Content, bool, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return settings.Content{}, false, nil
	}
	if err != nil {
		return settings.Content{}, false, fmt.Errorf("get draft: %w", err)
	}
	var content settings.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return settings.Content{}, false, fmt.Errorf("decode draft: %w", err)
	}
	return content, true, nil
}

func (r *RedisDrafts) Put(ctx context.Context, id string, content settings.Content) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+id, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (r *RedisDrafts) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.prefix+id).Err()
}

func (r *RedisDrafts) Close() error {
	return r.rdb.Close()
}
