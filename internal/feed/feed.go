// Package feed keeps the user's activity history: pages loaded on demand,
// merged by id, with newly created activities polled in at the top.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
)

const (
	DefaultPageSize     = 10
	DefaultPollLimit    = 5
	DefaultPollInterval = 30 * time.Second
)

// Lister fetches one page of activities
type Lister interface {
	ListActivities(ctx context.Context, token string, q api.ActivityQuery) (*api.ActivityPage, error)
}

// TokenSource supplies the current bearer token ("" when logged out)
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Option configures a Feed
type Option func(*Feed)

func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

func WithPollLimit(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.pollLimit = n
		}
	}
}

// WithType restricts the feed to one activity type
func WithType(t model.ActivityType) Option {
	return func(f *Feed) { f.filter = t }
}

// Feed is the accumulated activity list. Network calls run unlocked; only
// the merge into the held list is serialized.
type Feed struct {
	lister    Lister
	tokens    TokenSource
	pageSize  int
	pollLimit int
	filter    model.ActivityType

	mu      sync.Mutex
	items   []model.Activity
	page    int
	hasMore bool
	epoch   uint64
	closed  bool
}

// New creates an empty feed
func New(lister Lister, tokens TokenSource, opts ...Option) *Feed {
	f := &Feed{
		lister:    lister,
		tokens:    tokens,
		pageSize:  DefaultPageSize,
		pollLimit: DefaultPollLimit,
		page:      1,
		hasMore:   true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageSize returns the number of activities requested per page
func (f *Feed) PageSize() int {
	return f.pageSize
}

// LoadPage fetches page n. Page 1 replaces the list; later pages append
// activities not already held. On failure the list is left as it was.
func (f *Feed) LoadPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	token := f.tokens.Token()
	if token == "" {
		return api.ErrNoToken
	}
	epoch := f.currentEpoch()

	result, err := f.lister.ListActivities(ctx, token, api.ActivityQuery{
		Page: n, Limit: f.pageSize, Type: f.filter,
	})
	if err != nil {
		logger.Error("Failed to load activities", logger.Err(err), logger.F("page", n))
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || epoch != f.epoch {
		return nil
	}

	if n == 1 {
		f.items = appendUnseen(nil, result.Activities)
	} else {
		f.items = appendUnseen(f.items, result.Activities)
	}
	f.page = n
	f.hasMore = result.Pagination.HasMore

	logger.Debug("Activities loaded",
		logger.F("page", n),
		logger.F("received", len(result.Activities)),
		logger.F("held", len(f.items)))
	return nil
}

// LoadMore fetches the next page when the server reported more
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	next, more := f.page+1, f.hasMore
	if len(f.items) == 0 {
		next = 1
	}
	f.mu.Unlock()

	if !more {
		return nil
	}
	return f.LoadPage(ctx, next)
}

// PollLatest fetches the newest activities and prepends the ones not held yet
func (f *Feed) PollLatest(ctx context.Context) error {
	_, err := f.poll(ctx)
	return err
}

// poll reports whether the held list changed
func (f *Feed) poll(ctx context.Context) (bool, error) {
	token := f.tokens.Token()
	if token == "" {
		return false, api.ErrNoToken
	}
	epoch := f.currentEpoch()

	result, err := f.lister.ListActivities(ctx, token, api.ActivityQuery{
		Page: 1, Limit: f.pollLimit, Type: f.filter,
	})
	if err != nil {
		logger.Warn("Activity poll failed", logger.Err(err))
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || epoch != f.epoch {
		return false, nil
	}

	if len(f.items) == 0 {
		f.items = appendUnseen(nil, result.Activities)
		return len(f.items) > 0, nil
	}

	fresh := unseen(f.items, result.Activities)
	if len(fresh) == 0 {
		return false, nil
	}

	keep := max(0, f.pageSize-len(fresh))
	keep = min(keep, len(f.items))
	merged := make([]model.Activity, 0, len(fresh)+keep)
	merged = append(merged, fresh...)
	merged = append(merged, f.items[:keep]...)
	if keep < len(f.items) {
		// dropped entries are reachable again from page 2 on
		f.page = 1
		f.hasMore = true
	}
	f.items = merged

	logger.Debug("New activities polled", logger.F("new", len(fresh)))
	return true, nil
}

// Reset empties the feed. Requests started before Reset are ignored when they return.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.page = 1
	f.hasMore = true
	f.epoch++
}

// Close makes the feed ignore any request still in flight
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Snapshot returns a copy of the held activities, newest first
func (f *Feed) Snapshot() []model.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Activity, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

func (f *Feed) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *Feed) currentEpoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}

// appendUnseen appends the activities of add whose id is not in dst
func appendUnseen(dst, add []model.Activity) []model.Activity {
	return append(dst, unseen(dst, add)...)
}

// unseen returns the activities of add whose id is neither in held nor
// earlier in add
func unseen(held, add []model.Activity) []model.Activity {
	seen := make(map[model.ID]struct{}, len(held)+len(add))
	for _, a := range held {
		seen[a.ID] = struct{}{}
	}
	var out []model.Activity
	for _, a := range add {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
