// Package storage persists small string values (the session token) and
// reports changes made to them by other processes.
package storage

import "sync"

// TokenKey is the fixed key the session token is stored under.
const TokenKey = "jwt"

// Change describes a value written by another writer.
// NewValue is empty when the key was removed.
type Change struct {
	Key      string
	OldValue string
	NewValue string
}

// Storage is a string key-value store with a change stream.
//
// Writes made through a Storage are not reported to that Storage's own
// subscribers, only to other writers' subscribers.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Subscribe() (<-chan Change, func())
}

// hub fans changes out to subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan Change
	done chan struct{}
	once sync.Once
}

func (h *hub) subscribe() (<-chan Change, func()) {
	s := &subscriber{
		ch:   make(chan Change, 16),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[*subscriber]struct{})
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
			close(s.done)
		})
	}
	return s.ch, cancel
}

// publish delivers c to every subscriber, waiting on slow ones unless they unsubscribe.
func (h *hub) publish(c Change) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- c:
		case <-s.done:
		}
	}
}

// closeAll unsubscribes everyone.
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()

	for s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}
