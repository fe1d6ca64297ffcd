package clusterer

import "github.com/paulmach/orb"

// Event identifies a viewport lifecycle signal
type Event int

const (
	// EventContentLoaded fires once, when the viewport first finished loading its content.
	EventContentLoaded Event = iota
	// EventIdle fires whenever the viewport stops changing.
	EventIdle
	// EventZoomChanged fires when the zoom level changes.
	EventZoomChanged
)

func (e Event) String() string {
	switch e {
	case EventContentLoaded:
		return "content_loaded"
	case EventIdle:
		return "idle"
	case EventZoomChanged:
		return "zoom_changed"
	default:
		return "unknown"
	}
}

// Projection converts between geographic and viewport pixel coordinates.
// Geo points are orb.Point{lng, lat}; pixel points are orb.Point{x, y} with y growing downwards.
type Projection interface {
	GeoToPixel(p orb.Point) orb.Point
	PixelToGeo(px orb.Point) orb.Point
}

// Listener is a handle to a registered event callback
type Listener interface {
	Remove()
}

// Viewport is the host map surface the clusterer is attached to.
//
// Bounds returns false while the viewport has no extent yet. A bound whose
// Max longitude is less than its Min longitude crosses the anti-meridian.
// Projection returns nil until the viewport can convert coordinates.
// RequestFrame schedules fn to run once, after the next paint.
type Viewport interface {
	Bounds() (orb.Bound, bool)
	Zoom() int
	Projection() Projection
	Loaded() bool
	AddListener(ev Event, fn func()) Listener
	RequestFrame(fn func())
}
