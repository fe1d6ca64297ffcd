package viewer

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Redraw  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "west")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "east")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "north")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "south")),
		ZoomIn:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Redraw:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "redraw")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Up, k.Down, k.ZoomIn, k.ZoomOut, k.Redraw, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
