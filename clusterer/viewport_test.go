package clusterer

import (
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/mock"
)

// degreesPerPixel of linearProjection; a grid size of 60 pads by 6 degrees.
const degreesPerPixel = 0.1

// linearProjection is an equirectangular projection anchored at the
// north-west corner of a view, which keeps the expected boxes easy to
// compute by hand.
type linearProjection struct {
	origin orb.Point // geo point at pixel (0, 0)
}

func (p linearProjection) GeoToPixel(g orb.Point) orb.Point {
	return orb.Point{
		(g.Lon() - p.origin.Lon()) / degreesPerPixel,
		(p.origin.Lat() - g.Lat()) / degreesPerPixel,
	}
}

func (p linearProjection) PixelToGeo(px orb.Point) orb.Point {
	return orb.Point{
		p.origin.Lon() + px[0]*degreesPerPixel,
		p.origin.Lat() - px[1]*degreesPerPixel,
	}
}

type fakeListener struct {
	fn      func()
	removed bool
}

func (l *fakeListener) Remove() { l.removed = true }

// fakeViewport is a scriptable Viewport. Events only fire when a test emits them.
type fakeViewport struct {
	view      orb.Bound
	hasBounds bool
	noProj    bool
	zoom      int
	loaded    bool
	listeners map[Event][]*fakeListener
	frames    []func()
}

func newFakeViewport(view orb.Bound, zoom int) *fakeViewport {
	return &fakeViewport{
		view:      view,
		hasBounds: true,
		zoom:      zoom,
		listeners: make(map[Event][]*fakeListener),
	}
}

// tenDegreeView is the box [0, 10] x [0, 10], 100 pixels square
var tenDegreeView = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

func (v *fakeViewport) Bounds() (orb.Bound, bool) { return v.view, v.hasBounds }
func (v *fakeViewport) Zoom() int                 { return v.zoom }
func (v *fakeViewport) Loaded() bool              { return v.loaded }

func (v *fakeViewport) Projection() Projection {
	if v.noProj {
		return nil
	}
	return linearProjection{origin: orb.Point{v.view.Min.Lon(), v.view.Max.Lat()}}
}

func (v *fakeViewport) AddListener(ev Event, fn func()) Listener {
	l := &fakeListener{fn: fn}
	v.listeners[ev] = append(v.listeners[ev], l)
	return l
}

func (v *fakeViewport) RequestFrame(fn func()) { v.frames = append(v.frames, fn) }

func (v *fakeViewport) emit(ev Event) {
	for _, l := range v.listeners[ev] {
		if !l.removed {
			l.fn()
		}
	}
}

func (v *fakeViewport) liveListeners() int {
	n := 0
	for _, ls := range v.listeners {
		for _, l := range ls {
			if !l.removed {
				n++
			}
		}
	}
	return n
}

func (v *fakeViewport) paint() {
	frames := v.frames
	v.frames = nil
	for _, fn := range frames {
		fn()
	}
}

// ready emits the content-loaded and idle events that make a controller ready
func (v *fakeViewport) ready() {
	v.loaded = true
	v.emit(EventContentLoaded)
	v.emit(EventIdle)
}

type mockIcon struct {
	mock.Mock
}

func (m *mockIcon) SetSums(s Sums)             { m.Called(s) }
func (m *mockIcon) SetCenter(center orb.Point) { m.Called(center) }
func (m *mockIcon) Show()                      { m.Called() }
func (m *mockIcon) Hide()                      { m.Called() }
func (m *mockIcon) Remove()                    { m.Called() }

func at(lng, lat float64) *orb.Point {
	p := orb.Point{lng, lat}
	return &p
}

func ptr[T any](v T) *T { return &v }

func testMarker(id string, lng, lat float64) *Marker {
	return newMarker(MarkerOptions{ID: id, Position: at(lng, lat)})
}

func testEngine(vp Viewport, opts Options) *Engine {
	e := newEngine(opts.withDefaults(), vp, NewMarkerIndex())
	e.active = true
	return e
}
