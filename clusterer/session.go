package clusterer

import (
	"sync"

	"github.com/paulmach/orb"
)

// Session pairs a MapView with its controller behind a mutex so HTTP
// handlers, the MQTT feed and a terminal can share one clustered view.
type Session struct {
	mu   sync.Mutex
	view *MapView
	ctrl *Controller
}

// NewSession creates a view, installs a controller on it and brings it to
// the ready state.
func NewSession(width, height int, center orb.Point, zoom int, opts Options) (*Session, error) {
	view := NewMapView(width, height, center, zoom)
	ctrl, err := Install(view, opts)
	if err != nil {
		return nil, err
	}
	view.LoadContent()
	view.Settle()
	return &Session{view: view, ctrl: ctrl}, nil
}

// OnPass registers fn to receive a snapshot after every pass.
// fn runs with the session locked and must not call back into it.
func (s *Session) OnPass(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.OnPass(func() { fn(s.ctrl.Snapshot()) })
}

// SetView moves the view; the resulting idle runs a pass
func (s *Session) SetView(center orb.Point, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetView(center, zoom)
}

// ViewChange is a partial view update; nil fields keep their current value
type ViewChange struct {
	Lat  *float64
	Lng  *float64
	Zoom *int
}

func (c ViewChange) empty() bool {
	return c.Lat == nil && c.Lng == nil && c.Zoom == nil
}

// SnapshotAt applies change and snapshots the result under one lock, so
// concurrent callers never see or overwrite each other's half-applied view.
func (s *Session) SnapshotAt(change ViewChange) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !change.empty() {
		center, zoom := s.view.Center(), s.view.Zoom()
		if change.Lat != nil {
			center = orb.Point{center.Lon(), *change.Lat}
		}
		if change.Lng != nil {
			center = orb.Point{*change.Lng, center.Lat()}
		}
		if change.Zoom != nil {
			zoom = *change.Zoom
		}
		s.view.SetView(center, zoom)
	}
	s.view.Paint()
	return s.ctrl.Snapshot()
}

// Pan moves the view by dx, dy pixels
func (s *Session) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Pan(dx, dy)
}

// ZoomBy changes the zoom by delta levels
func (s *Session) ZoomBy(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetZoom(s.view.Zoom() + delta)
}

// Resize changes the view size
func (s *Session) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Resize(width, height)
}

// View returns the current center, zoom and size
func (s *Session) View() (center orb.Point, zoom, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	width, height = s.view.Size()
	return s.view.Center(), s.view.Zoom(), width, height
}

// ApplyUpdates applies a batch of marker updates followed by one pass
func (s *Session) ApplyUpdates(batch []MarkerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.ApplyUpdates(batch)
}

// ClearMarkers removes every marker
func (s *Session) ClearMarkers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.ClearMarkers()
}

// Redraw forces a pass
func (s *Session) Redraw() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Redraw()
}

// Snapshot paints pending frames, so superseded clusters are gone, and
// copies the clustered state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Paint()
	return s.ctrl.Snapshot()
}

// Close destroys the controller
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Destroy()
}
