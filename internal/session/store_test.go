package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier answers Session from a table; tokens listed in gates block
// until their gate channel is closed.
type fakeVerifier struct {
	mu        sync.Mutex
	users     map[string]*model.User
	gates     map[string]chan struct{}
	calls     map[string]int
	endErr    error
	endCalls  []string
	sessionOK chan string
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		users:     make(map[string]*model.User),
		gates:     make(map[string]chan struct{}),
		calls:     make(map[string]int),
		sessionOK: make(chan string, 16),
	}
}

func (f *fakeVerifier) Session(ctx context.Context, token string) (*model.User, error) {
	f.mu.Lock()
	f.calls[token]++
	gate := f.gates[token]
	user := f.users[token]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	defer func() { f.sessionOK <- token }()
	if user == nil {
		return nil, &api.ServerError{Status: 401, Message: "Invalid token"}
	}
	return user, nil
}

func (f *fakeVerifier) EndSession(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls = append(f.endCalls, token)
	return f.endErr
}

func (f *fakeVerifier) callCount(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[token]
}

func (f *fakeVerifier) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func waitReady(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
}

func TestStoreVerifiesPersistedToken(t *testing.T) {
	v := newFakeVerifier()
	v.users["abc"] = &model.User{ID: "u1", Name: "Asha", Email: "asha@example.com"}

	st := storage.NewMemory()
	require.NoError(t, st.Set(storage.TokenKey, "abc"))

	s := New(context.Background(), v, st)
	defer s.Close()
	waitReady(t, s)

	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "Asha", s.CurrentUser().Name)
	assert.Equal(t, "abc", s.Token())
	assert.False(t, s.Loading())
	assert.Equal(t, 1, v.callCount("abc"))
}

func TestStoreWithoutTokenMakesNoRequest(t *testing.T) {
	v := newFakeVerifier()
	s := New(context.Background(), v, storage.NewMemory())
	defer s.Close()

	assert.False(t, s.Loading())
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, StatusAnonymous, s.State().Status)
	assert.Zero(t, v.totalCalls())
}

func TestStoreRejectedTokenIsCleared(t *testing.T) {
	v := newFakeVerifier()
	st := storage.NewMemory()
	require.NoError(t, st.Set(storage.TokenKey, "expired"))

	s := New(context.Background(), v, st)
	defer s.Close()
	waitReady(t, s)

	assert.Nil(t, s.CurrentUser())
	assert.Eventually(t, func() bool {
		_, ok := st.Get(storage.TokenKey)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestStoreLogin(t *testing.T) {
	v := newFakeVerifier()
	v.users["fresh"] = &model.User{ID: "u2", Name: "Ravi Kumar"}
	st := storage.NewMemory()

	s := New(context.Background(), v, st)
	defer s.Close()
	assert.False(t, s.Login(context.Background()))

	require.NoError(t, st.Set(storage.TokenKey, "fresh"))
	assert.True(t, s.Login(context.Background()))
	assert.Equal(t, "Ravi", s.CurrentUser().FirstName())

	require.NoError(t, st.Set(storage.TokenKey, "bogus"))
	assert.False(t, s.Login(context.Background()))
	assert.Nil(t, s.CurrentUser())
}

func TestStoreReactsToOtherWriters(t *testing.T) {
	v := newFakeVerifier()
	v.users["b"] = &model.User{ID: "u3", Name: "Meera"}

	st := storage.NewMemory()
	other := st.Peer()

	s := New(context.Background(), v, st)
	defer s.Close()

	require.NoError(t, other.Set(storage.TokenKey, "b"))
	assert.Eventually(t, func() bool {
		u := s.CurrentUser()
		return u != nil && u.Name == "Meera"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, v.callCount("b"))

	// same value again is not re-verified
	require.NoError(t, other.Set(storage.TokenKey, "b"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, v.callCount("b"))

	calls := v.totalCalls()
	require.NoError(t, other.Remove(storage.TokenKey))
	assert.Eventually(t, func() bool { return s.CurrentUser() == nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, calls, v.totalCalls())
}

func TestStoreDiscardsStaleVerification(t *testing.T) {
	v := newFakeVerifier()
	v.users["A"] = &model.User{ID: "a", Name: "Alpha"}
	v.users["B"] = &model.User{ID: "b", Name: "Bravo"}
	gateA := make(chan struct{})
	v.gates["A"] = gateA

	st := storage.NewMemory()
	other := st.Peer()
	require.NoError(t, st.Set(storage.TokenKey, "A"))

	s := New(context.Background(), v, st)
	defer s.Close()
	require.Eventually(t, func() bool { return v.callCount("A") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, other.Set(storage.TokenKey, "B"))
	waitReady(t, s)
	require.Equal(t, "Bravo", s.CurrentUser().Name)

	close(gateA)
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case tok := <-v.sessionOK:
			done = tok == "A"
		case <-timeout:
			t.Fatal("verification of A never returned")
		}
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, "Bravo", s.CurrentUser().Name)
	assert.Equal(t, "B", s.Token())
}

func TestStoreLogoutAlwaysClears(t *testing.T) {
	v := newFakeVerifier()
	v.users["abc"] = &model.User{ID: "u1", Name: "Asha"}
	v.endErr = &api.NetworkError{Op: "logout", Err: errors.New("connection refused")}

	st := storage.NewMemory()
	require.NoError(t, st.Set(storage.TokenKey, "abc"))

	s := New(context.Background(), v, st)
	defer s.Close()
	waitReady(t, s)
	require.NotNil(t, s.CurrentUser())

	s.Logout(context.Background())

	assert.Nil(t, s.CurrentUser())
	assert.Empty(t, s.Token())
	_, ok := st.Get(storage.TokenKey)
	assert.False(t, ok)
	assert.Equal(t, []string{"abc"}, v.endCalls)
}

func TestStoreOverFileStaysLoggedOut(t *testing.T) {
	v := newFakeVerifier()
	v.sessionOK = make(chan string, 128)
	// remote logout fails, so the server would still accept every token
	v.endErr = &api.NetworkError{Op: "logout", Err: errors.New("connection refused")}

	st, err := storage.OpenFile(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	defer st.Close()

	s := New(context.Background(), v, st)
	defer s.Close()
	waitReady(t, s)

	const rounds = 50
	for i := 0; i < rounds; i++ {
		token := fmt.Sprintf("t%d", i)
		v.mu.Lock()
		v.users[token] = &model.User{ID: model.ID(token), Name: token}
		v.mu.Unlock()

		require.NoError(t, st.Set(storage.TokenKey, token))
		require.True(t, s.Login(context.Background()))
		s.Logout(context.Background())
	}

	// give queued watcher events time to land
	time.Sleep(300 * time.Millisecond)

	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, StatusAnonymous, s.State().Status)
	assert.Equal(t, rounds, v.totalCalls())
	_, ok := st.Get(storage.TokenKey)
	assert.False(t, ok)
}

func TestStoreCloseStopsResolution(t *testing.T) {
	v := newFakeVerifier()
	v.users["slow"] = &model.User{ID: "u1", Name: "Asha"}
	gate := make(chan struct{})
	v.gates["slow"] = gate

	st := storage.NewMemory()
	require.NoError(t, st.Set(storage.TokenKey, "slow"))

	s := New(context.Background(), v, st)
	require.Eventually(t, func() bool { return v.callCount("slow") == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	s.Close()

	assert.Nil(t, s.CurrentUser())
	assert.True(t, s.Loading())
}

func TestStoreSubscribe(t *testing.T) {
	v := newFakeVerifier()
	v.users["abc"] = &model.User{ID: "u1", Name: "Asha"}
	st := storage.NewMemory()

	s := New(context.Background(), v, st)
	defer s.Close()

	states, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.NoError(t, st.Set(storage.TokenKey, "abc"))
	require.True(t, s.Login(context.Background()))

	select {
	case got := <-states:
		assert.Equal(t, StatusAuthenticated, got.Status)
		assert.Equal(t, "Asha", got.User.Name)
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}
}
