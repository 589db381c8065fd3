// Package session holds the process-wide authentication state. The token
// lives in storage; the user is always re-derived from it by asking the
// backend who the token belongs to.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/storage"
)

// Verifier resolves and terminates sessions on the backend
type Verifier interface {
	Session(ctx context.Context, token string) (*model.User, error)
	EndSession(ctx context.Context, token string) error
}

// Status is the coarse authentication state
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// State is a snapshot of the store. User and Token are set only when
// Status is StatusAuthenticated.
type State struct {
	Status Status
	User   *model.User
	Token  string
}

// Option configures a Store
type Option func(*Store)

// WithVerifyTimeout bounds each verification call
func WithVerifyTimeout(d time.Duration) Option {
	return func(s *Store) { s.verifyTimeout = d }
}

// verification is one in-flight session lookup
type verification struct {
	gen    uint64
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Store tracks who is logged in
type Store struct {
	verifier      Verifier
	storage       storage.Storage
	verifyTimeout time.Duration

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	mu      sync.Mutex
	state   State
	gen     uint64
	current *verification
	closed  bool
	subs    []chan State

	ready     chan struct{}
	readyOnce sync.Once
}

// New reads the persisted token and starts resolving it. With no token the
// store is anonymous immediately and no request is made.
func New(ctx context.Context, verifier Verifier, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		verifier: verifier,
		storage:  st,
		state:    State{Status: StatusLoading},
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	changes, unsubscribe := st.Subscribe()
	s.unsubscribe = unsubscribe
	s.wg.Add(1)
	go s.watch(changes)

	token, _ := st.Get(storage.TokenKey)
	s.mu.Lock()
	if token == "" {
		s.setAnonymousLocked()
	} else {
		s.beginLocked(token)
	}
	s.mu.Unlock()

	return s
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentUser returns the authenticated user, or nil
func (s *Store) CurrentUser() *model.User {
	return s.State().User
}

// Token returns the verified token, or ""
func (s *Store) Token() string {
	return s.State().Token
}

// Loading reports whether the first resolution is still pending
func (s *Store) Loading() bool {
	return s.State().Status == StatusLoading
}

// WaitReady blocks until the first resolution completes
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login re-reads the token from storage and verifies it. The caller is
// expected to have just written a fresh token. It reports whether a session
// exists afterwards.
func (s *Store) Login(ctx context.Context) bool {
	token, _ := s.storage.Get(storage.TokenKey)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if token == "" {
		s.supersedeLocked()
		s.setAnonymousLocked()
		s.mu.Unlock()
		return false
	}
	v := s.beginLocked(token)
	s.mu.Unlock()

	select {
	case <-v.done:
	case <-ctx.Done():
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == StatusAuthenticated
}

// Logout ends the session. The remote call is best effort; local state and
// the persisted token are always cleared.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.state.Token
	s.supersedeLocked()
	s.mu.Unlock()

	if stored, _ := s.storage.Get(storage.TokenKey); stored != "" {
		token = stored
	}
	if token != "" {
		if err := s.verifier.EndSession(ctx, token); err != nil {
			logger.Warn("Remote logout failed", logger.Err(err))
		}
	}

	if err := s.storage.Remove(storage.TokenKey); err != nil {
		logger.Error("Failed to remove session token", logger.Err(err))
	}

	s.mu.Lock()
	s.supersedeLocked()
	s.setAnonymousLocked()
	s.mu.Unlock()

	logger.Info("Logged out")
}

// Subscribe returns a channel carrying the latest state after each change.
// Slow readers only ever see the most recent state.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, c := range s.subs {
				if c == ch {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

// Close stops watching storage and abandons any in-flight verification.
// Nothing resolved after Close changes the state.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.supersedeLocked()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	s.wg.Wait()

	for _, ch := range subs {
		close(ch)
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) watch(changes <-chan storage.Change) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case c := <-changes:
			if c.Key == storage.TokenKey {
				s.tokenChanged(c.NewValue)
			}
		}
	}
}

// tokenChanged reacts to another writer replacing or removing the token
func (s *Store) tokenChanged(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if token == "" {
		if s.current == nil && s.state.Status == StatusAnonymous {
			return
		}
		logger.Info("Session token removed elsewhere")
		s.supersedeLocked()
		s.setAnonymousLocked()
		return
	}

	if s.current != nil && s.current.token == token {
		return
	}
	if s.current == nil && s.state.Status == StatusAuthenticated && s.state.Token == token {
		return
	}
	logger.Debug("Session token changed elsewhere")
	s.beginLocked(token)
}

// beginLocked starts verifying token, superseding any earlier verification
func (s *Store) beginLocked(token string) *verification {
	s.supersedeLocked()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.verifyTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.verifyTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	v := &verification{
		gen:    s.gen,
		token:  token,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.current = v

	s.wg.Add(1)
	go s.verify(ctx, v)
	return v
}

// supersedeLocked invalidates the in-flight verification, if any
func (s *Store) supersedeLocked() {
	s.gen++
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

func (s *Store) verify(ctx context.Context, v *verification) {
	defer s.wg.Done()
	defer close(v.done)
	defer v.cancel()

	user, err := s.verifier.Session(ctx, v.token)

	s.mu.Lock()
	if s.closed || v.gen != s.gen {
		s.mu.Unlock()
		logger.Debug("Discarding stale session verification")
		return
	}
	s.current = nil
	if err == nil {
		s.state = State{Status: StatusAuthenticated, User: user, Token: v.token}
		s.markReadyLocked()
		s.notifyLocked()
		s.mu.Unlock()
		logger.Info("Session verified", logger.F("email", user.Email))
		return
	}
	s.setAnonymousLocked()
	s.mu.Unlock()

	logger.Warn("Session verification failed", logger.Err(err))
	if stored, _ := s.storage.Get(storage.TokenKey); stored == v.token {
		if err := s.storage.Remove(storage.TokenKey); err != nil {
			logger.Error("Failed to remove session token", logger.Err(err))
		}
	}
}

func (s *Store) setAnonymousLocked() {
	changed := s.state.Status != StatusAnonymous
	s.state = State{Status: StatusAnonymous}
	s.markReadyLocked()
	if changed {
		s.notifyLocked()
	}
}

func (s *Store) markReadyLocked() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Store) notifyLocked() {
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
