package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/agrisense/internal/api"
	"github.com/existflow/agrisense/internal/feed"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/session"
)

// tickMsg is sent every second for the clock
type tickMsg time.Time

// pollRefreshMsg is sent when a poll brought in new activities
type pollRefreshMsg struct{}

// pageLoadedMsg reports the outcome of a page fetch
type pageLoadedMsg struct {
	feed *feed.Feed
	page int
	err  error
}

// sessionMsg carries a session state change
type sessionMsg session.State

// sessionClosedMsg means the session subscription ended
type sessionClosedMsg struct{}

// loggedOutMsg is sent once Logout has finished
type loggedOutMsg struct{}

// deletedMsg reports the outcome of deleting an activity
type deletedMsg struct {
	id  model.ID
	err error
}

// Init starts the clock, the first page load and the background listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		m.loadPage(1),
		m.waitForPollRefresh(),
		m.waitForSession(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForPollRefresh listens for poller refresh signals
func (m Model) waitForPollRefresh() tea.Cmd {
	ch := m.pollRefreshChan
	return func() tea.Msg {
		<-ch
		return pollRefreshMsg{}
	}
}

// waitForSession listens for session state changes
func (m Model) waitForSession() tea.Cmd {
	ch := m.sessionChan
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionMsg(st)
	}
}

func (m Model) loadPage(n int) tea.Cmd {
	f := m.feed
	return func() tea.Msg {
		err := f.LoadPage(context.Background(), n)
		return pageLoadedMsg{feed: f, page: n, err: err}
	}
}

func (m Model) loadMore() tea.Cmd {
	f := m.feed
	return func() tea.Msg {
		err := f.LoadMore(context.Background())
		return pageLoadedMsg{feed: f, page: f.Page(), err: err}
	}
}

func (m Model) logout() tea.Cmd {
	store := m.app.Session
	return func() tea.Msg {
		store.Logout(context.Background())
		return loggedOutMsg{}
	}
}

func (m Model) deleteActivity(id model.ID) tea.Cmd {
	client, token := m.app.API, m.app.Session.Token()
	return func() tea.Msg {
		err := client.DeleteActivity(context.Background(), token, id)
		return deletedMsg{id: id, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pageLoadedMsg:
		if msg.feed != m.feed {
			// a filter change replaced the feed while this was in flight
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.message = "Failed to load activities: " + api.Message(msg.err)
			return m, nil
		}
		m.syncActivities()
		m.message = ""
		return m, nil

	case pollRefreshMsg:
		// New activities were polled in
		m.lastPoll = time.Now()
		m.syncActivities()
		m.message = "New activity"
		return m, m.waitForPollRefresh()

	case sessionMsg:
		return m.handleSession(session.State(msg))

	case sessionClosedMsg:
		return m, nil

	case loggedOutMsg:
		m.signedOut = true
		m.message = "Logged out"
		return m, tea.Quit

	case deletedMsg:
		if msg.err != nil {
			m.message = "Delete failed: " + api.Message(msg.err)
			return m, nil
		}
		m.message = fmt.Sprintf("Deleted activity %s", msg.id)
		m.loading = true
		return m, m.loadPage(1)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = max(0, msg.Width-4)
		m.detail.Height = max(0, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeDetail:
			return m.handleDetailKeys(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleSession reacts to logins and logouts made in other terminals
func (m Model) handleSession(st session.State) (tea.Model, tea.Cmd) {
	switch st.Status {
	case session.StatusAnonymous:
		logger.Info("Session ended while dashboard was open")
		m.signedOut = true
		m.message = "Signed out"
		return m, tea.Quit

	case session.StatusAuthenticated:
		if m.user == nil || st.User.ID != m.user.ID {
			logger.Info("Dashboard switched user", logger.F("email", st.User.Email))
			m.user = st.User
			m.feed.Reset()
			m.activities = nil
			m.cursor = 0
			m.loading = true
			return m, tea.Batch(m.loadPage(1), m.waitForSession())
		}
	}
	return m, m.waitForSession()
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.activities)-1 {
			m.cursor++
		} else if m.feed.HasMore() && !m.loading {
			// scrolling past the end loads the next page
			m.loading = true
			return m, m.loadMore()
		}

	case key.Matches(msg, keys.Top):
		m.cursor = 0

	case key.Matches(msg, keys.Bottom):
		m.cursor = max(0, len(m.activities)-1)

	case key.Matches(msg, keys.Enter):
		if a := m.currentActivity(); a != nil {
			m.detail.SetContent(detailContent(*a))
			m.detail.GotoTop()
			m.mode = ModeDetail
		}

	case key.Matches(msg, keys.More):
		if !m.feed.HasMore() {
			m.message = "No more activities"
			return m, nil
		}
		if !m.loading {
			m.loading = true
			return m, m.loadMore()
		}

	case key.Matches(msg, keys.Refresh):
		m.feed.Reset()
		m.activities = nil
		m.cursor = 0
		m.loading = true
		m.message = "Reloading..."
		return m, m.loadPage(1)

	case key.Matches(msg, keys.PollNow):
		// results arrive through the poller's refresh channel
		m.poller.Trigger()
		m.message = "Checking for new activity..."

	case key.Matches(msg, keys.Filter):
		m.filter = (m.filter + 1) % len(typeFilters)
		m.startFeed()
		m.loading = true
		m.message = "Showing " + filterLabel(typeFilters[m.filter])
		return m, m.loadPage(1)

	case key.Matches(msg, keys.Delete):
		if a := m.currentActivity(); a != nil {
			return m, m.deleteActivity(a.ID)
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Logout):
		m.message = "Logging out..."
		return m, m.logout()
	}

	return m, nil
}

// handleDetailKeys scrolls the detail pane
func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.mode = ModeNormal
		return m, nil
	case key.Matches(msg, keys.Escape), key.Matches(msg, keys.Enter):
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}
