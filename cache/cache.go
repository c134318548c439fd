package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// PageCache stores rendered pages as files named by the xxhash of their key.
// A nil *PageCache is valid and caches nothing.
type PageCache struct {
	dir string
	ttl time.Duration

	mu         sync.RWMutex
	generation uint64
}

// New returns nil when ttl is not positive, which disables caching.
func New(dir string, ttl time.Duration) (*PageCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &PageCache{dir: dir, ttl: ttl}, nil
}

func (p *PageCache) path(key string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%016x.html", xxhash.Sum64String(key)))
}

// Read returns the cached body if present and younger than the TTL.
func (p *PageCache) Read(key string) ([]byte, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	path := p.path(key)
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) > p.ttl {
		return nil, false
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Generation changes every time the cache is cleared.
func (p *PageCache) Generation() uint64 {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

// Write stores body unless the cache was cleared since generation was read,
// so a page rendered from data that has since changed is dropped.
func (p *PageCache) Write(key string, body []byte, generation uint64) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return nil
	}

	tmp, err := os.CreateTemp(p.dir, "page-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.path(key))
}

// Clear drops every cached page.
func (p *PageCache) Clear() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	return p.removeMatching(func(os.FileInfo) bool { return true })
}

// ClearExpired removes pages older than the TTL.
func (p *PageCache) ClearExpired() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeMatching(func(info os.FileInfo) bool { return time.Since(info.ModTime()) > p.ttl })
}

func (p *PageCache) removeMatching(match func(os.FileInfo) bool) error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if match(info) {
			if err := os.Remove(filepath.Join(p.dir, e.Name())); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
