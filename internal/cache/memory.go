package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.drop(key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drop(key)
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl), tags: tags}
	for _, t := range tags {
		if m.tags[t] == nil {
			m.tags[t] = make(map[string]struct{})
		}
		m.tags[t][key] = struct{}{}
	}
}

func (m *Memory) Invalidate(_ context.Context, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		for key := range m.tags[t] {
			m.drop(key)
		}
		delete(m.tags, t)
	}
}

// drop removes key and its tag memberships. Callers hold mu.
func (m *Memory) drop(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, t := range e.tags {
		delete(m.tags[t], key)
		if len(m.tags[t]) == 0 {
			delete(m.tags, t)
		}
	}
}
