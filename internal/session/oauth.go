package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/storage"
)

// CallbackPath is where the OAuth provider sends the browser back to
const CallbackPath = "/auth/callback"

var (
	// ErrMissingToken means the callback carried neither a token nor an error
	ErrMissingToken = errors.New("no token received from authentication")
	// ErrCallbackUsed is returned for every callback after the first
	ErrCallbackUsed = errors.New("authentication callback already processed")
	// ErrSessionFailed means the token was stored but did not verify
	ErrSessionFailed = errors.New("failed to establish session")
)

// ParseCallback extracts the token from the callback query
func ParseCallback(q url.Values) (string, error) {
	if msg := q.Get("error"); msg != "" {
		return "", fmt.Errorf("google sign-in failed: %s", msg)
	}
	token := q.Get("token")
	if q.Get("success") == "true" && token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// CallbackResult is the outcome of the one callback that gets processed
type CallbackResult struct {
	User *model.User
	Err  error
}

// CallbackHandler completes an OAuth login exactly once. Browsers and
// providers may hit the redirect more than once; later hits are refused.
type CallbackHandler struct {
	store   *Store
	once    sync.Once
	results chan CallbackResult
}

// NewCallbackHandler returns a handler that logs into store
func NewCallbackHandler(store *Store) *CallbackHandler {
	return &CallbackHandler{
		store:   store,
		results: make(chan CallbackResult, 1),
	}
}

// Results yields the single callback outcome
func (h *CallbackHandler) Results() <-chan CallbackResult {
	return h.results
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ran := false
	h.once.Do(func() {
		ran = true
		res := h.complete(r.Context(), r.URL.Query())
		h.results <- res
		writeCallbackPage(w, res)
	})
	if !ran {
		http.Error(w, ErrCallbackUsed.Error(), http.StatusConflict)
	}
}

func (h *CallbackHandler) complete(ctx context.Context, q url.Values) CallbackResult {
	token, err := ParseCallback(q)
	if err != nil {
		logger.Warn("OAuth callback rejected", logger.Err(err))
		return CallbackResult{Err: err}
	}
	if err := h.store.storage.Set(storage.TokenKey, token); err != nil {
		return CallbackResult{Err: fmt.Errorf("failed to save token: %w", err)}
	}
	if !h.store.Login(ctx) {
		return CallbackResult{Err: ErrSessionFailed}
	}
	return CallbackResult{User: h.store.CurrentUser()}
}

func writeCallbackPage(w http.ResponseWriter, res CallbackResult) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if res.Err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<h2>Authentication failed</h2><p>%s</p><p>You can close this window.</p>",
			html.EscapeString(res.Err.Error()))
		return
	}
	fmt.Fprintf(w, "<h2>Signed in as %s</h2><p>You can close this window and return to the terminal.</p>",
		html.EscapeString(res.User.Name))
}

// CallbackServer is a loopback listener serving CallbackHandler
type CallbackServer struct {
	handler  *CallbackHandler
	listener net.Listener
	server   *http.Server
}

// ListenCallback starts a callback server on 127.0.0.1 with a random port
func ListenCallback(store *Store) (*CallbackServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	h := NewCallbackHandler(store)
	mux := http.NewServeMux()
	mux.Handle(CallbackPath, h)

	cs := &CallbackServer{
		handler:  h,
		listener: ln,
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
	go func() {
		if err := cs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server stopped", logger.Err(err))
		}
	}()
	return cs, nil
}

// FrontendURL is the origin the backend should redirect back to
func (cs *CallbackServer) FrontendURL() string {
	return "http://" + cs.listener.Addr().String()
}

// Wait blocks until the callback has been processed or ctx ends
func (cs *CallbackServer) Wait(ctx context.Context) (*model.User, error) {
	select {
	case res := <-cs.handler.Results():
		return res.User, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for browser sign-in: %w", ctx.Err())
	}
}

// Close shuts the listener down
func (cs *CallbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return cs.server.Shutdown(ctx)
}
