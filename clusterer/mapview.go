package clusterer

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MapView limits
const (
	TileSize    = 256
	MinViewZoom = 0
	MaxViewZoom = 22
	maxLatitude = 85.05112878
)

// MapView is an in-memory Web Mercator viewport. It raises the lifecycle
// events a map widget would, so the clusterer can run headless behind a
// service or a terminal.
//
// Pixels are relative to the top-left corner of the view. A MapView is not
// safe for concurrent use.
type MapView struct {
	width, height int
	center        orb.Point
	zoom          int
	loaded        bool

	listeners map[Event][]*viewListener
	frames    []func()
}

type viewListener struct {
	fn      func()
	removed bool
}

func (l *viewListener) Remove() { l.removed = true }

// NewMapView creates a view of width x height pixels
func NewMapView(width, height int, center orb.Point, zoom int) *MapView {
	return &MapView{
		width:     width,
		height:    height,
		center:    normalizeCenter(center),
		zoom:      clampZoom(zoom),
		listeners: make(map[Event][]*viewListener),
	}
}

// Size returns the view size in pixels
func (v *MapView) Size() (int, int) { return v.width, v.height }

// Center returns the geographic center
func (v *MapView) Center() orb.Point { return v.center }

// Zoom returns the integer zoom level
func (v *MapView) Zoom() int { return v.zoom }

// Loaded reports whether content has been loaded once
func (v *MapView) Loaded() bool { return v.loaded }

// Projection returns the projection for the current view, or nil while the
// view has no area.
func (v *MapView) Projection() Projection {
	if v.width <= 0 || v.height <= 0 {
		return nil
	}
	world := worldSize(v.zoom)
	c := geoToWorld(v.center, world)
	return mercatorProjection{
		world:  world,
		center: c,
		origin: orb.Point{c[0] - float64(v.width)/2, c[1] - float64(v.height)/2},
	}
}

// Bounds returns the visible area. Longitudes are wrapped into [-180, 180];
// a view straddling the anti-meridian yields Max.Lon < Min.Lon. A view wider
// than the world covers every longitude.
func (v *MapView) Bounds() (orb.Bound, bool) {
	proj := v.Projection()
	if proj == nil {
		return orb.Bound{}, false
	}
	tl := proj.PixelToGeo(orb.Point{0, 0})
	br := proj.PixelToGeo(orb.Point{float64(v.width), float64(v.height)})

	south := math.Max(br.Lat(), -maxLatitude)
	north := math.Min(tl.Lat(), maxLatitude)

	if float64(v.width) >= worldSize(v.zoom) {
		return orb.Bound{
			Min: orb.Point{-180, south},
			Max: orb.Point{180, north},
		}, true
	}
	return orb.Bound{
		Min: orb.Point{wrapLongitude(tl.Lon()), south},
		Max: orb.Point{wrapLongitude(br.Lon()), north},
	}, true
}

// AddListener registers fn for ev
func (v *MapView) AddListener(ev Event, fn func()) Listener {
	l := &viewListener{fn: fn}
	v.listeners[ev] = append(v.listeners[ev], l)
	return l
}

// RequestFrame queues fn to run on the next Paint
func (v *MapView) RequestFrame(fn func()) {
	v.frames = append(v.frames, fn)
}

// PendingFrames returns the number of queued continuations
func (v *MapView) PendingFrames() int { return len(v.frames) }

// Paint runs the continuations queued before the call. Continuations queued
// while painting wait for the next Paint.
func (v *MapView) Paint() int {
	frames := v.frames
	v.frames = nil
	for _, fn := range frames {
		fn()
	}
	return len(frames)
}

// LoadContent marks the content as loaded, raising EventContentLoaded the first time
func (v *MapView) LoadContent() {
	if v.loaded {
		return
	}
	v.loaded = true
	v.emit(EventContentLoaded)
}

// Settle raises EventIdle without changing the view
func (v *MapView) Settle() {
	v.emit(EventIdle)
}

// SetView moves the view and settles it
func (v *MapView) SetView(center orb.Point, zoom int) {
	v.center = normalizeCenter(center)
	zoom = clampZoom(zoom)
	if zoom != v.zoom {
		v.zoom = zoom
		v.emit(EventZoomChanged)
	}
	v.emit(EventIdle)
}

// SetZoom changes the zoom around the current center
func (v *MapView) SetZoom(zoom int) {
	v.SetView(v.center, zoom)
}

// Pan moves the view by dx, dy pixels
func (v *MapView) Pan(dx, dy float64) {
	world := worldSize(v.zoom)
	c := geoToWorld(v.center, world)
	v.SetView(worldToGeo(orb.Point{c[0] + dx, c[1] + dy}, world), v.zoom)
}

// Resize changes the view size and settles it
func (v *MapView) Resize(width, height int) {
	v.width, v.height = width, height
	v.emit(EventIdle)
}

func (v *MapView) emit(ev Event) {
	live := v.listeners[ev][:0]
	for _, l := range v.listeners[ev] {
		if !l.removed {
			live = append(live, l)
		}
	}
	v.listeners[ev] = live

	for _, l := range slices.Clone(live) {
		if !l.removed {
			l.fn()
		}
	}
}

// mercatorProjection maps geo points to view pixels. Longitudes resolve to
// the world copy nearest the view center, so both sides of the
// anti-meridian stay on screen.
type mercatorProjection struct {
	world  float64
	center orb.Point // world pixels
	origin orb.Point // world pixel of the view's top-left corner
}

func (p mercatorProjection) GeoToPixel(g orb.Point) orb.Point {
	w := geoToWorld(g, p.world)
	for w[0]-p.center[0] > p.world/2 {
		w[0] -= p.world
	}
	for p.center[0]-w[0] > p.world/2 {
		w[0] += p.world
	}
	return orb.Point{w[0] - p.origin[0], w[1] - p.origin[1]}
}

// PixelToGeo wraps longitudes into [-180, 180]. GeoToPixel resolves them back
// to the world copy nearest the view center.
func (p mercatorProjection) PixelToGeo(px orb.Point) orb.Point {
	g := worldToGeo(orb.Point{px[0] + p.origin[0], px[1] + p.origin[1]}, p.world)
	return orb.Point{wrapLongitude(g.Lon()), g.Lat()}
}

func worldSize(zoom int) float64 {
	return TileSize * math.Exp2(float64(zoom))
}

// halfCircumference is the Mercator x of longitude 180
var halfCircumference = math.Pi * orb.EarthRadius

func geoToWorld(g orb.Point, world float64) orb.Point {
	g = orb.Point{g.Lon(), clampLatitude(g.Lat())}
	m := project.WGS84.ToMercator(g)
	scale := world / (2 * halfCircumference)
	return orb.Point{
		(m[0] + halfCircumference) * scale,
		(halfCircumference - m[1]) * scale,
	}
}

// worldToGeo leaves longitudes unwrapped; Pan relies on that to move across
// the anti-meridian.
func worldToGeo(w orb.Point, world float64) orb.Point {
	scale := (2 * halfCircumference) / world
	m := orb.Point{
		w[0]*scale - halfCircumference,
		halfCircumference - w[1]*scale,
	}
	return project.Mercator.ToWGS84(m)
}

func normalizeCenter(c orb.Point) orb.Point {
	return orb.Point{wrapLongitude(c.Lon()), clampLatitude(c.Lat())}
}

func clampLatitude(lat float64) float64 {
	return math.Max(-maxLatitude, math.Min(maxLatitude, lat))
}

func clampZoom(z int) int {
	return max(MinViewZoom, min(MaxViewZoom, z))
}

// wrapLongitude maps lng into [-180, 180]
func wrapLongitude(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}
