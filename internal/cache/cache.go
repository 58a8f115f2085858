// Package cache memoizes analysis results and lyric lookups in memory for
// the lifetime of a process. Nothing is persisted.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memo is a concurrency-safe map with optional expiry. A zero ttl never expires.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

func New[V any](ttl time.Duration) *Memo[V] {
	return &Memo[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key hashes case-folded parts, e.g. artist and title.
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:12])
}

// ContentKey hashes raw bytes, e.g. an uploaded file.
func ContentKey(kind string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (m *Memo[V]) Get(key string) (V, error) {
	var zero V
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return zero, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return zero, ErrCacheExpired
	}
	return e.value, nil
}

func (m *Memo[V]) Set(key string, value V) {
	e := entry[V]{value: value}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memo[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *Memo[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry[V])
	m.mu.Unlock()
}

// Prune drops expired entries and reports how many were removed.
func (m *Memo[V]) Prune() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
			pruned++
		}
	}
	return pruned
}

func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
