package content

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemoryCAS is an in-process CAS for tests and local runs.
type MemoryCAS struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{blocks: make(map[string][]byte)}
}

func (m *MemoryCAS) Put(_ context.Context, data []byte) (cid.Cid, error) {
	id, err := ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id.KeyString()]; !ok {
		m.blocks[id.KeyString()] = append([]byte(nil), data...)
	}
	return id, nil
}

func (m *MemoryCAS) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blocks[id.KeyString()]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryCAS) Has(_ context.Context, id cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id.KeyString()]
	return ok, nil
}

// Len returns the number of distinct blocks stored.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
