package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used in tests and local experiments.
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *Memory) GetHash(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[key]
	if !ok {
		return nil, nil
	}
	cp := make(map[string]string, len(h))
	for k, v := range h {
		cp[k] = v
	}
	return cp, nil
}

func (m *Memory) SetHash(_ context.Context, key string, fields map[string]string) error {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[key] = cp
	return nil
}

func (m *Memory) DeleteHash(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Members(_ context.Context, setKey string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var members []string
	for member := range m.sets[setKey] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) AddMember(_ context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[setKey] == nil {
		m.sets[setKey] = make(map[string]struct{})
	}
	m.sets[setKey][member] = struct{}{}
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[setKey], member)
	return nil
}

func (m *Memory) Close() error { return nil }
