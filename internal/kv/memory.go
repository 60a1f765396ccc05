package kv

import (
	"context"
	"sync"
)

var (
	_ Store  = (*Memory)(nil)
	_ Pinger = (*Memory)(nil)
)

// Memory is a process-local Store. A positive quota bounds the total size of
// all stored values, the way browser local storage does.
type Memory struct {
	mu    sync.Mutex
	data  map[string][]byte
	size  int
	quota int
}

// NewMemory returns an empty Memory store. A quota of zero disables the limit.
func NewMemory(quota int) *Memory {
	return &Memory{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores a copy of value, failing with ErrStorageFull when the quota would
// be exceeded.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.size - len(m.data[key]) + len(value)
	if m.quota > 0 && size > m.quota {
		return Full(nil, "memory put "+key)
	}
	m.data[key] = append([]byte(nil), value...)
	m.size = size
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}
