package clusterer

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Marker is a point entity known to the clusterer.
// Position and visibility are owned by the host; attachment to the display
// surface is driven by the clusters the marker lands in.
type Marker struct {
	id          string
	position    orb.Point
	hasPosition bool
	visible     bool
	attached    bool
}

// MarkerOptions configures a marker at creation time
type MarkerOptions struct {
	ID       string     // generated when empty
	Position *orb.Point // nil for a marker without a resolvable position
	Hidden   bool       // host-level visibility, false means visible
}

// MarkerUpdate is one mutation from a batch, a feed or a file.
// Nil fields leave the marker unchanged; unknown IDs create a marker.
type MarkerUpdate struct {
	ID      string   `json:"id"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
}

// Position returns the marker's coordinates if it has any
func (u MarkerUpdate) Position() (orb.Point, bool) {
	if u.Lat == nil || u.Lng == nil {
		return orb.Point{}, false
	}
	return orb.Point{*u.Lng, *u.Lat}, true
}

func newMarker(opts MarkerOptions) *Marker {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	m := &Marker{id: id, visible: !opts.Hidden}
	if opts.Position != nil {
		m.position = *opts.Position
		m.hasPosition = true
	}
	return m
}

// ID returns the marker's identity
func (m *Marker) ID() string { return m.id }

// Position returns the marker's coordinates, false if it has none
func (m *Marker) Position() (orb.Point, bool) {
	return m.position, m.hasPosition
}

// Visible reports the host-level visibility flag
func (m *Marker) Visible() bool { return m.visible }

// Attached reports whether the marker is currently drawn individually
func (m *Marker) Attached() bool { return m.attached }

func (m *Marker) setPosition(p orb.Point) {
	m.position = p
	m.hasPosition = true
}

func (m *Marker) attach() { m.attached = true }

func (m *Marker) detach() { m.attached = false }

// lng is the sort key of the marker index; markers without a position sort at 0
func (m *Marker) lng() float64 {
	if !m.hasPosition {
		return 0
	}
	return m.position.Lon()
}
