// Package viewer is a terminal host for a clustered map view.
package viewer

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kwv/geocluster/clusterer"
)

// Each terminal cell covers CellWidth x CellHeight viewport pixels
const (
	CellWidth  = 8
	CellHeight = 16
)

// header and footer rows
const chromeRows = 2

const refreshInterval = time.Second

type tickMsg time.Time

// Model drives a Session from the keyboard and draws its snapshot
type Model struct {
	session *clusterer.Session
	width   int
	height  int
	snap    clusterer.Snapshot
	status  string
	keys    keyMap
	help    help.Model
}

// New creates a model over an existing session
func New(s *clusterer.Session) Model {
	m := Model{
		session: s,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.refresh()
	return m
}

// Init starts the periodic refresh that picks up feed updates
func (m Model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		cols, rows := m.mapSize()
		m.session.Resize(cols*CellWidth, rows*CellHeight)
		m.refresh()
	case tickMsg:
		m.refresh()
		return m, tick()
	case tea.KeyMsg:
		_, _, w, h := m.session.View()
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Left):
			m.session.Pan(-float64(w)/4, 0)
		case key.Matches(msg, m.keys.Right):
			m.session.Pan(float64(w)/4, 0)
		case key.Matches(msg, m.keys.Up):
			m.session.Pan(0, -float64(h)/4)
		case key.Matches(msg, m.keys.Down):
			m.session.Pan(0, float64(h)/4)
		case key.Matches(msg, m.keys.ZoomIn):
			m.session.ZoomBy(1)
		case key.Matches(msg, m.keys.ZoomOut):
			m.session.ZoomBy(-1)
		case key.Matches(msg, m.keys.Redraw):
			if err := m.session.Redraw(); err != nil {
				m.status = "redraw: " + err.Error()
				return m, nil
			}
		default:
			return m, nil
		}
		m.refresh()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	center, zoom, _, _ := m.session.View()
	m.status = fmt.Sprintf("z%d  %.4f, %.4f  markers=%d clusters=%d shown=%d",
		zoom, center.Lat(), center.Lon(), m.snap.TotalMarkers, len(m.snap.Clusters), len(m.snap.VisibleClusters()))
}

// mapSize is the map area in cells
func (m Model) mapSize() (cols, rows int) {
	return max(m.width, 1), max(m.height-chromeRows, 1)
}
