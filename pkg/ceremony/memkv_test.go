package ceremony

import (
	"sort"
	"sync"

	"github.com/humanproof-network/ceremonies/pkg/kv"
)

// memKV is a minimal in-memory kv.KV for tests, in the style of the
// validator's MemoryKV.
type memKV struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{store: make(map[string][]byte)}
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.store[string(key)]; ok {
		return v, nil
	}
	return nil, nil
}

func (m *memKV) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[string(key)] = append([]byte{}, value...)
	return nil
}

func (m *memKV) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, string(key))
	return nil
}

func (m *memKV) Iterator(start, end []byte) (kv.Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.store {
		if k >= string(start) && (end == nil || k < string(end)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return &memIterator{keys: keys, kv: m}, nil
}

type memIterator struct {
	keys []string
	pos  int
	kv   *memKV
}

func (it *memIterator) Valid() bool { return it.pos < len(it.keys) }
func (it *memIterator) Next()       { it.pos++ }
func (it *memIterator) Key() []byte {
	return []byte(it.keys[it.pos])
}
func (it *memIterator) Value() []byte {
	v, _ := it.kv.Get([]byte(it.keys[it.pos]))
	return v
}
func (it *memIterator) Close() error { return nil }
