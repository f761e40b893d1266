package engine

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemEngine is an in-process reference Engine: a sorted slice of keys kept
// alongside their values, located by binary search. No third-party ordered
// key-value store (bbolt, pebble, badger, leveldb) appears as a real
// dependency anywhere in the example pack this module was grounded on, so
// this reference adapter is plain stdlib (sort, sync) — a real deployment
// is expected to supply its own Engine backed by one of those.
type MemEngine struct {
	mu   sync.RWMutex
	keys [][]byte
	vals [][]byte
}

// NewMemEngine constructs an empty in-process engine.
func NewMemEngine() *MemEngine {
	return &MemEngine{}
}

// find returns the insertion index and whether key is present there.
func (m *MemEngine) find(key []byte) (int, bool) {
	i := sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], key) >= 0 })
	return i, i < len(m.keys) && bytes.Equal(m.keys[i], key)
}

func (m *MemEngine) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v := append([]byte(nil), value...)
	i, found := m.find(key)
	if found {
		m.vals[i] = v
		return nil
	}
	k := append([]byte(nil), key...)
	m.keys = append(m.keys, nil)
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = k
	m.vals = append(m.vals, nil)
	copy(m.vals[i+1:], m.vals[i:])
	m.vals[i] = v
	return nil
}

func (m *MemEngine) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, found := m.find(key)
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), m.vals[i]...), true, nil
}

func (m *MemEngine) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i, found := m.find(key)
	if !found {
		return nil
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	return nil
}

func (m *MemEngine) Range(ctx context.Context, start, end []byte, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], start) >= 0 })
	var out []KV
	for ; i < len(m.keys); i++ {
		if end != nil && bytes.Compare(m.keys[i], end) >= 0 {
			break
		}
		out = append(out, KV{
			Key:   append([]byte(nil), m.keys[i]...),
			Value: append([]byte(nil), m.vals[i]...),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
