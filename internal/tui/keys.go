package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit    key.Binding
	Screen  key.Binding
	Up      key.Binding
	Down    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Loop    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Screen:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "monitor/devices")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next file")),
	Prev:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous file")),
	Loop:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "toggle loop")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan devices")),
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Screen, k.Next, k.Loop, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Screen, k.Quit},
		{k.Next, k.Prev, k.Loop},
		{k.Up, k.Down, k.Refresh},
	}
}
