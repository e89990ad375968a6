package kv

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Compile-time contract assertion.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store backed by go-cache with expiration disabled.
// Data is lost when the process exits.
//
// Thread-safety: Update units are serialized by mu; View takes the read
// side so views never observe a half-applied unit.
type Memory struct {
	mu     sync.RWMutex
	cache  *gocache.Cache
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// View implements Store.
func (m *Memory) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(memReader{cache: m.cache})
}

// Update implements Store. Writes are staged and applied only when fn
// returns nil.
func (m *Memory) Update(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	txn := &memTxn{memReader: memReader{cache: m.cache}, staged: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}
	for _, key := range txn.order {
		m.cache.Set(key, txn.staged[key], gocache.NoExpiration)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache.ItemCount()
}

// Close implements Store. The contents are flushed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.cache.Flush()
		m.closed = true
	}
	return nil
}

type memReader struct {
	cache *gocache.Cache
}

func (r memReader) Get(key string) ([]byte, bool, error) {
	v, found := r.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	return cloneBytes(v.([]byte)), true, nil
}

type memTxn struct {
	memReader
	staged map[string][]byte
	order  []string
}

func (t *memTxn) Get(key string) ([]byte, bool, error) {
	if v, ok := t.staged[key]; ok {
		return cloneBytes(v), true, nil
	}
	return t.memReader.Get(key)
}

func (t *memTxn) Set(key string, value []byte) error {
	if _, seen := t.staged[key]; !seen {
		t.order = append(t.order, key)
	}
	t.staged[key] = cloneBytes(value)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
