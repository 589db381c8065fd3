package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/agrisense/internal/model"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	statusBar := m.renderStatusBar()

	var body string
	switch m.mode {
	case ModeDetail:
		body = DetailStyle.Width(m.width - 2).Render(m.detail.View())
	case ModeHelp:
		body = m.renderHelp()
	default:
		body = m.renderList()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

func (m Model) renderHeader() string {
	title := HeaderStyle.Render("AgriSense")
	clock := HelpStyle.Render(time.Now().Format("15:04:05"))

	name := "User"
	if m.user != nil {
		name = m.user.FirstName()
	}
	greeting := GreetingStyle.Render(fmt.Sprintf("Welcome back, %s", name))

	counts := typeCounts(m.activities)
	stats := fmt.Sprintf("%s %d  %s %d  %s %d",
		TypeIcon(model.ActivityCrop), counts[model.ActivityCrop],
		TypeIcon(model.ActivityFertilizer), counts[model.ActivityFertilizer],
		TypeIcon(model.ActivityDisease), counts[model.ActivityDisease])

	left := lipgloss.JoinHorizontal(lipgloss.Top, title, greeting)
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(stats)-lipgloss.Width(clock)-4)
	return left + strings.Repeat(" ", gap) + stats + "  " + clock
}

func (m Model) renderList() string {
	width := m.width - 4
	height := m.height - 4
	var s string

	heading := fmt.Sprintf("Recent activity (%s)", filterLabel(typeFilters[m.filter]))
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(heading) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render(strings.Repeat("─", max(0, width-4))) + "\n\n"

	if len(m.activities) == 0 {
		if m.loading {
			s += m.spinner.View() + " Loading activities..."
		} else {
			s += HelpStyle.Render("  No activities yet. Run 'agri crop', 'agri fertilizer' or 'agri disease'.")
		}
		return ListStyle.Width(width).Height(height).Render(s)
	}

	// each activity takes two lines; keep the cursor on screen
	visible := max(1, (height-4)/2)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(len(m.activities), start+visible)

	for i := start; i < end; i++ {
		a := m.activities[i]
		cursor := "  "
		style := ItemStyle
		if i == m.cursor {
			cursor = "❯ "
			style = ItemSelectedStyle
		}

		date := ""
		if !a.CreatedAt.IsZero() {
			date = a.CreatedAt.Local().Format("Jan 2 15:04")
		}

		title := TypeStyle(a.Type).Render(TypeIcon(a.Type)) + " " +
			fmt.Sprintf("%-*s", max(10, width-32), truncate(a.Title, max(10, width-32)))
		s += style.Render(cursor+title) + " " + FormatStatus(a.Status) + " " + HelpStyle.Render(date) + "\n"
		s += SummaryStyle.Render(truncate(a.Summary(), max(10, width-10))) + "\n"
	}

	if m.loading {
		s += "\n" + m.spinner.View() + " Loading more..."
	} else if m.feed.HasMore() {
		s += "\n" + HelpStyle.Render("  m: load more")
	}

	return ListStyle.Width(width).Height(height).Render(s)
}

func (m Model) renderStatusBar() string {
	help := "↑↓:move  enter:details  m:more  r:reload  R:check new  f:filter  d:del  ?:help  L:logout  q:quit"
	if m.mode == ModeDetail {
		help = "↑↓:scroll  esc:back"
	}
	if m.message != "" {
		help = m.message
		if strings.HasPrefix(m.message, "Failed") || strings.HasSuffix(m.message, "failed") {
			help = ErrorStyle.Render(m.message)
		}
	}

	// Append poll status (right aligned)
	pollMsg := fmt.Sprintf("%d loaded", len(m.activities))
	if !m.lastPoll.IsZero() {
		pollMsg += " · checked " + m.lastPoll.Format("15:04:05")
	}

	avail := m.width - lipgloss.Width(help) - lipgloss.Width(pollMsg) - 2
	if avail > 0 {
		help += strings.Repeat(" ", avail) + pollMsg
	} else {
		help += " " + pollMsg
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  g/G    Top / bottom     │
│  Enter  Show details     │
│                          │
│  Activities              │
│  ──────────              │
│  m      Load more        │
│  r      Reload           │
│  R      Check for new    │
│  f      Cycle type       │
│  d      Delete           │
│                          │
│  Other                   │
│  ─────                   │
│  L      Logout           │
│  ?      Toggle help      │
│  q      Quit             │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-4, lipgloss.Center, lipgloss.Center, help)
}
