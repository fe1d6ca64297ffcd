package clusterer

import (
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/paulmach/orb"
)

// State is the controller's position in the viewport lifecycle
type State int

const (
	// StateUninitialized: not attached to the viewport.
	StateUninitialized State = iota
	// StateAwaitingFirstSettle: listeners installed, waiting for the first
	// content load and the first idle.
	StateAwaitingFirstSettle
	// StateReady: every idle triggers a pass.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingFirstSettle:
		return "awaiting_first_settle"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Controller wires a viewport's lifecycle to a clustering engine and owns the
// markers. It is not safe for concurrent use; see Session for a locked wrapper.
type Controller struct {
	viewport Viewport
	index    *MarkerIndex
	markers  map[string]*Marker
	engine   *Engine
	registry *Registry

	state         State
	contentLoaded bool // sticky across detach and reattach
	settled       bool // first idle seen since attach
	lastZoom      int
	listeners     []Listener
	destroyed     bool
	inPass        bool // set for the whole pass, OnPass hooks included

	onPass []func()
}

// New creates a controller for vp and attaches it. The viewport must not be
// nil; options are completed with defaults and validated.
func New(vp Viewport, opts Options) (*Controller, error) {
	if vp == nil {
		return nil, ErrUnavailable
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		viewport: vp,
		index:    NewMarkerIndex(),
		markers:  make(map[string]*Marker),
	}
	c.engine = newEngine(opts, vp, c.index)
	c.attach()
	return c, nil
}

// Options returns the effective options
func (c *Controller) Options() Options {
	opts := c.engine.opts
	opts.Styles = slices.Clone(opts.Styles)
	return opts
}

// State returns the lifecycle state
func (c *Controller) State() State { return c.state }

// OnPass registers fn to run after every clustering pass. Mutations from fn
// return ErrPassInProgress and idle events it raises are ignored.
func (c *Controller) OnPass(fn func()) {
	c.onPass = append(c.onPass, fn)
}

func (c *Controller) attach() {
	c.state = StateAwaitingFirstSettle
	c.settled = false
	c.lastZoom = c.viewport.Zoom()
	if c.viewport.Loaded() {
		c.contentLoaded = true
	}

	c.listeners = []Listener{
		c.viewport.AddListener(EventContentLoaded, c.handleContentLoaded),
		c.viewport.AddListener(EventIdle, c.handleIdle),
		c.viewport.AddListener(EventZoomChanged, c.handleZoomChanged),
	}
	log.Printf("[CLUSTER] attached (strategy=%s, gridSize=%d)", c.engine.opts.Strategy, c.engine.opts.GridSize)
}

func (c *Controller) detach() {
	for _, l := range c.listeners {
		l.Remove()
	}
	c.listeners = nil
	c.engine.Reset()
	c.engine.active = false
	for _, m := range c.index.markers {
		m.detach()
	}
	c.state = StateUninitialized
	c.settled = false
	log.Printf("[CLUSTER] detached")
}

func (c *Controller) handleContentLoaded() {
	c.contentLoaded = true
	c.checkReady()
}

func (c *Controller) handleIdle() {
	if c.inPass {
		return
	}
	if c.state == StateReady {
		c.pass()
		return
	}
	c.settled = true
	c.checkReady()
}

func (c *Controller) handleZoomChanged() {
	zoom := c.viewport.Zoom()
	if zoom == c.lastZoom {
		return
	}
	c.lastZoom = zoom
	c.engine.Reset()
}

func (c *Controller) checkReady() {
	if c.state != StateAwaitingFirstSettle || !c.contentLoaded || !c.settled {
		return
	}
	c.state = StateReady
	c.engine.active = true
	log.Printf("[CLUSTER] ready with %d markers", c.index.Len())
	if c.engine.hasVisibleMarkers() {
		c.pass()
	}
}

func (c *Controller) pass() {
	c.inPass = true
	defer func() { c.inPass = false }()

	c.engine.Redraw()
	for _, fn := range c.onPass {
		fn()
	}
}

// guard rejects mutations after Destroy and from inside a pass
func (c *Controller) guard() error {
	if c.destroyed {
		return ErrDestroyed
	}
	if c.inPass || c.engine.inPass {
		return ErrPassInProgress
	}
	return nil
}

// CreateMarker registers a new marker. It starts detached from the surface
// and is picked up by the next pass.
func (c *Controller) CreateMarker(opts MarkerOptions) (*Marker, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	if opts.ID != "" {
		if _, exists := c.markers[opts.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrMarkerExists, opts.ID)
		}
	}
	m := newMarker(opts)
	c.markers[m.ID()] = m
	c.index.Add(m)
	return m, nil
}

// Marker looks up a marker by ID
func (c *Controller) Marker(id string) (*Marker, bool) {
	m, ok := c.markers[id]
	return m, ok
}

// UpdateMarker applies one update without running a pass. Unknown IDs create
// a marker.
func (c *Controller) UpdateMarker(u MarkerUpdate) (*Marker, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	return c.apply(u)
}

// ApplyUpdates applies a batch and then runs a single pass if the controller is ready
func (c *Controller) ApplyUpdates(batch []MarkerUpdate) error {
	if err := c.guard(); err != nil {
		return err
	}
	for i, u := range batch {
		if _, err := c.apply(u); err != nil {
			return fmt.Errorf("update %d: %w", i, err)
		}
	}
	if c.state == StateReady {
		c.pass()
	}
	return nil
}

func (c *Controller) apply(u MarkerUpdate) (*Marker, error) {
	m, ok := c.markers[u.ID]
	if !ok {
		opts := MarkerOptions{ID: u.ID}
		if p, ok := u.Position(); ok {
			opts.Position = &p
		}
		if u.Visible != nil {
			opts.Hidden = !*u.Visible
		}
		m = newMarker(opts)
		c.markers[m.ID()] = m
		c.index.Add(m)
		return m, nil
	}

	if p, ok := u.Position(); ok {
		m.setPosition(p)
		c.index.Touch()
	}
	if u.Visible != nil {
		m.visible = *u.Visible
	}
	return m, nil
}

// ClearMarkers removes every marker and cluster
func (c *Controller) ClearMarkers() error {
	if err := c.guard(); err != nil {
		return err
	}
	c.engine.Reset()
	for _, m := range c.index.markers {
		m.detach()
	}
	c.index.Clear()
	clear(c.markers)
	c.engine.clearAssignments()
	return nil
}

// Redraw forces a clustering pass. Before the viewport is ready it does nothing.
func (c *Controller) Redraw() error {
	if err := c.guard(); err != nil {
		return err
	}
	if c.state != StateReady {
		return nil
	}
	c.pass()
	return nil
}

// SetVisible attaches the controller to its viewport or detaches it.
// Detaching tears down every cluster but keeps the markers.
func (c *Controller) SetVisible(visible bool) error {
	if err := c.guard(); err != nil {
		return err
	}
	switch {
	case visible && c.state == StateUninitialized:
		c.attach()
	case !visible && c.state != StateUninitialized:
		c.detach()
	}
	return nil
}

// Destroy detaches the controller and drops its markers. It cannot be undone.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	if c.state != StateUninitialized {
		c.detach()
	}
	c.index.Clear()
	clear(c.markers)
	c.engine.clearAssignments()
	c.destroyed = true
	if c.registry != nil {
		c.registry.forget(c.viewport, c)
	}
	log.Printf("[CLUSTER] destroyed")
}

// Destroyed reports whether Destroy was called
func (c *Controller) Destroyed() bool { return c.destroyed }

// TotalClusters returns the number of live clusters, including those below
// the minimum size
func (c *Controller) TotalClusters() int { return len(c.engine.Clusters()) }

// Clusters returns the live clusters of the last pass
func (c *Controller) Clusters() []*Cluster { return slices.Clone(c.engine.Clusters()) }

// ClusterOf returns the cluster a marker was last assigned to
func (c *Controller) ClusterOf(markerID string) (int, bool) { return c.engine.ClusterOf(markerID) }

// NumMarkers returns the number of registered markers
func (c *Controller) NumMarkers() int { return c.index.Len() }

// HasMarkers reports whether any marker is registered
func (c *Controller) HasMarkers() bool { return c.index.Len() > 0 }

// Markers returns every marker ordered by ID
func (c *Controller) Markers() []*Marker {
	ids := slices.Sorted(maps.Keys(c.markers))
	out := make([]*Marker, len(ids))
	for i, id := range ids {
		out[i] = c.markers[id]
	}
	return out
}

// ClustersBounds returns the union of every live cluster's bounds
func (c *Controller) ClustersBounds() (orb.Bound, bool) {
	var acc boundsAccumulator
	for _, cl := range c.engine.Clusters() {
		acc.addBound(cl.Bounds())
	}
	return acc.result()
}

// MarkersBounds returns the bounding box of every visible marker with a position
func (c *Controller) MarkersBounds() (orb.Bound, bool) {
	var acc boundsAccumulator
	for _, m := range c.index.markers {
		if !m.Visible() {
			continue
		}
		if p, ok := m.Position(); ok {
			acc.addPoint(p)
		}
	}
	return acc.result()
}

// SetCalculator replaces the bucket calculator; nil restores the default.
// It takes effect on the next pass.
func (c *Controller) SetCalculator(fn Calculator) {
	if fn == nil {
		fn = DefaultCalculator
	}
	c.engine.calculator = fn
}

// SetStyles replaces the style list; an empty list restores the defaults
func (c *Controller) SetStyles(styles []Style) {
	if len(styles) == 0 {
		styles = DefaultStyles(c.engine.opts.ImagePath, c.engine.opts.ImageExtension)
	}
	c.engine.opts.Styles = slices.Clone(styles)
}

// Styles returns a copy of the style list
func (c *Controller) Styles() []Style { return slices.Clone(c.engine.opts.Styles) }

// SetIconFactory replaces the factory used for clusters created from now on
func (c *Controller) SetIconFactory(f IconFactory) {
	if f == nil {
		f = nopIconFactory
	}
	c.engine.iconFactory = f
}
