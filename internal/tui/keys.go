package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Top     key.Binding
	Bottom  key.Binding
	Enter   key.Binding
	More    key.Binding
	Filter  key.Binding
	Delete  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
	Logout  key.Binding
	Refresh key.Binding
	PollNow key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Top:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	More:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
	Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter type")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Logout:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	PollNow: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "check for new")),
}
