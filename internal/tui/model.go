package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/agrisense/internal/app"
	"github.com/existflow/agrisense/internal/feed"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/session"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeDetail
	ModeHelp
)

// typeFilters is the order the filter key cycles through
var typeFilters = []model.ActivityType{
	"",
	model.ActivityCrop,
	model.ActivityFertilizer,
	model.ActivityDisease,
}

// Model is the dashboard model
type Model struct {
	app *app.App

	feed   *feed.Feed
	poller *feed.Poller

	pollRefreshChan chan struct{} // signalled when a poll brought in new activities
	sessionChan     <-chan session.State
	unsubscribe     func()

	user       *model.User
	activities []model.Activity
	filter     int // index into typeFilters

	// UI state
	width    int
	height   int
	mode     Mode
	cursor   int
	loading  bool
	spinner  spinner.Model
	detail   viewport.Model
	lastPoll time.Time

	signedOut bool
	message   string
}

// NewModel creates the dashboard for an authenticated app
func NewModel(a *app.App) Model {
	logger.Info("Initializing dashboard")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	m := Model{
		app:             a,
		user:            a.Session.CurrentUser(),
		pollRefreshChan: make(chan struct{}, 1), // Buffered to avoid blocking
		spinner:         sp,
		detail:          viewport.New(0, 0),
		loading:         true,
	}
	m.sessionChan, m.unsubscribe = a.Session.Subscribe()
	m.startFeed()
	return m
}

// startFeed (re)creates the feed and its poller for the current filter
func (m *Model) startFeed() {
	if m.poller != nil {
		m.poller.Stop()
	}
	if m.feed != nil {
		m.feed.Close()
	}

	var opts []feed.Option
	if t := typeFilters[m.filter]; t != "" {
		opts = append(opts, feed.WithType(t))
	}
	m.feed = m.app.NewFeed(opts...)
	m.activities = nil
	m.cursor = 0

	m.poller = feed.NewPoller(m.feed, m.app.Config.PollInterval)
	refresh := m.pollRefreshChan
	m.poller.SetOnUpdate(func() {
		logger.Debug("Poll brought in new activities")
		// Non-blocking send to trigger UI refresh
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
}

// Close stops polling and releases the session subscription
func (m Model) Close() {
	if m.poller != nil {
		m.poller.Stop()
	}
	if m.feed != nil {
		m.feed.Close()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// SignedOut reports whether the dashboard ended because the session went away
func (m Model) SignedOut() bool {
	return m.signedOut
}

func (m *Model) currentActivity() *model.Activity {
	if m.cursor < len(m.activities) {
		return &m.activities[m.cursor]
	}
	return nil
}

func (m *Model) syncActivities() {
	m.activities = m.feed.Snapshot()
	if m.cursor >= len(m.activities) {
		m.cursor = max(0, len(m.activities)-1)
	}
}

// Run shows the dashboard until the user quits or the session ends. It
// reports whether the session ended.
func Run(a *app.App) (bool, error) {
	logger.Info("Launching dashboard")
	p := tea.NewProgram(NewModel(a), tea.WithAltScreen())

	final, err := p.Run()
	m, ok := final.(Model)
	if ok {
		m.Close()
	}
	if err != nil {
		logger.Error("Dashboard error", logger.Err(err))
		return false, err
	}

	logger.Info("Dashboard exited normally")
	return ok && m.SignedOut(), nil
}
