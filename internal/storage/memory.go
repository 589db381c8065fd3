package storage

import "sync"

// Memory is an in-process Storage. Handles created with Peer share data and
// see each other's writes as changes, the way browser tabs share localStorage.
type Memory struct {
	shared *memoryData
	hub    hub
}

type memoryData struct {
	mu      sync.Mutex
	values  map[string]string
	handles []*Memory
}

// NewMemory returns an empty store
func NewMemory() *Memory {
	m := &Memory{shared: &memoryData{values: make(map[string]string)}}
	m.shared.handles = append(m.shared.handles, m)
	return m
}

// Peer returns another handle onto the same data
func (m *Memory) Peer() *Memory {
	p := &Memory{shared: m.shared}
	m.shared.mu.Lock()
	m.shared.handles = append(m.shared.handles, p)
	m.shared.mu.Unlock()
	return p
}

func (m *Memory) Get(key string) (string, bool) {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	v, ok := m.shared.values[key]
	return v, ok
}

func (m *Memory) Set(key, value string) error {
	m.write(key, value, true)
	return nil
}

func (m *Memory) Remove(key string) error {
	m.write(key, "", false)
	return nil
}

func (m *Memory) Subscribe() (<-chan Change, func()) {
	return m.hub.subscribe()
}

func (m *Memory) write(key, value string, set bool) {
	m.shared.mu.Lock()
	old, existed := m.shared.values[key]
	if set {
		m.shared.values[key] = value
	} else {
		delete(m.shared.values, key)
	}
	others := make([]*Memory, 0, len(m.shared.handles))
	for _, h := range m.shared.handles {
		if h != m {
			others = append(others, h)
		}
	}
	m.shared.mu.Unlock()

	if existed == set && old == value {
		return
	}
	c := Change{Key: key, OldValue: old, NewValue: value}
	for _, h := range others {
		h.hub.publish(c)
	}
}
