// Package app wires the client components together once per command run.
package app

import (
	"context"
	"fmt"

	"github.com/existflow/agrisense/internal/advisor"
	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/config"
	"github.com/existflow/agrisense/internal/feed"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/session"
	"github.com/existflow/agrisense/internal/storage"
)

// App is the application context handed to commands and the dashboard
type App struct {
	Config  *config.Config
	API     *api.Client
	Storage storage.Storage
	Session *session.Store
	Advisor *advisor.Advisor

	closeStorage func() error
}

// Open builds an App backed by the token file in the config directory
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Dir() == "" {
		return nil, fmt.Errorf("no state directory for session storage")
	}
	st, err := storage.OpenFile(storage.DefaultPath(cfg.Dir()))
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	a := New(ctx, cfg, st)
	a.closeStorage = st.Close
	return a, nil
}

// New builds an App on top of st
func New(ctx context.Context, cfg *config.Config, st storage.Storage) *App {
	client := api.New(cfg.APIURL, api.WithTimeout(cfg.RequestTimeout))
	store := session.New(ctx, client, st, session.WithVerifyTimeout(cfg.RequestTimeout))

	logger.Debug("Application context ready", logger.F("api", client.BaseURL()))

	return &App{
		Config:  cfg,
		API:     client,
		Storage: st,
		Session: store,
		Advisor: advisor.New(client, store),
	}
}

// SignIn stores token and verifies it. It reports whether a session exists.
func (a *App) SignIn(ctx context.Context, token string) (bool, error) {
	if err := a.Storage.Set(storage.TokenKey, token); err != nil {
		return false, fmt.Errorf("failed to save token: %w", err)
	}
	return a.Session.Login(ctx), nil
}

// NewFeed returns an activity feed sized from config
func (a *App) NewFeed(opts ...feed.Option) *feed.Feed {
	base := []feed.Option{
		feed.WithPageSize(a.Config.PageSize),
		feed.WithPollLimit(a.Config.PollLimit),
	}
	return feed.New(a.API, a.Session, append(base, opts...)...)
}

// Close releases the session store and storage
func (a *App) Close() {
	a.Session.Close()
	if a.closeStorage != nil {
		if err := a.closeStorage(); err != nil {
			logger.Warn("Failed to close session storage", logger.Err(err))
		}
	}
}
