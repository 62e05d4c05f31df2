package kvstore

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process Store used in tests and single-node dev setups.
// A zero TTL means entries persist until the process exits.
type Memory struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	val string
	exp time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if !e.exp.IsZero() && now.After(e.exp) {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return "", false, nil
	}

	return e.val, true, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	e := entry{val: value}

	if s.ttl > 0 {
		e.exp = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()

	return nil
}
