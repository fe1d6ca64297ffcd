package clusterer

import (
	"slices"

	"github.com/paulmach/orb"
)

// Fixed bound used to seed the grid when Options.GridGlobal is set
var globalGridBound = orb.Bound{
	Min: orb.Point{-175, -85},
	Max: orb.Point{175, 85},
}

// Engine runs clustering passes over a marker index for one viewport.
// It is not safe for concurrent use; every call must happen on the
// viewport's event turn.
type Engine struct {
	opts        Options
	viewport    Viewport
	index       *MarkerIndex
	clusters    []*Cluster
	calculator  Calculator
	iconFactory IconFactory

	nextID      int
	assignments map[string]int // marker ID -> cluster ID, last writer wins
	inPass      bool
	active      bool // clustering allowed; false while detached from the viewport
}

func newEngine(opts Options, vp Viewport, index *MarkerIndex) *Engine {
	return &Engine{
		opts:        opts,
		viewport:    vp,
		index:       index,
		calculator:  DefaultCalculator,
		iconFactory: nopIconFactory,
		assignments: make(map[string]int),
	}
}

// Clusters returns the live clusters of the last pass
func (e *Engine) Clusters() []*Cluster { return e.clusters }

// ClusterOf returns the ID of the cluster the marker was last assigned to
func (e *Engine) ClusterOf(markerID string) (int, bool) {
	id, ok := e.assignments[markerID]
	return id, ok
}

// Redraw rebuilds the clusters from the marker index. The previous clusters
// are torn down after the next paint so their replacements are drawn first.
func (e *Engine) Redraw() {
	old := e.clusters
	e.clusters = nil

	if e.hasVisibleMarkers() {
		e.createClusters()
	} else {
		for _, m := range e.index.Sorted() {
			m.detach()
		}
	}

	if len(old) == 0 {
		return
	}
	e.viewport.RequestFrame(func() {
		for _, c := range old {
			c.Remove()
		}
	})
}

// Reset removes every cluster immediately
func (e *Engine) Reset() {
	for _, c := range e.clusters {
		c.Remove()
	}
	e.clusters = nil
}

func (e *Engine) hasVisibleMarkers() bool {
	for _, m := range e.index.markers {
		if m.Visible() {
			return true
		}
	}
	return false
}

func (e *Engine) createClusters() {
	if !e.active {
		return
	}
	e.inPass = true
	defer func() { e.inPass = false }()

	if e.opts.Strategy == StrategyGrid {
		e.gridClustering()
	} else {
		e.incrementalClustering()
	}
}

// incrementalClustering walks the longitude window of the extended viewport
// and puts every candidate in the first cluster whose box contains it,
// creating a new cluster when none does.
func (e *Engine) incrementalClustering() {
	extended, ok := e.extendedViewport()
	if !ok {
		return
	}

	markers := e.index.Sorted()
	first := e.index.LowerBound(extended.Min.Lon())
	working := slices.Clone(e.clusters)

	for _, m := range markers[first:] {
		if m.lng() > extended.Max.Lon() {
			break
		}
		pos, ok := e.candidate(m, extended)
		if !ok {
			continue
		}

		found := false
		for j := 0; j < len(working); j++ {
			c := working[j]
			// Candidates arrive west to east, so a cluster whose box ends
			// west of this one can never match again.
			if c.bounds.Max.Lon() < pos.Lon() {
				working = slices.Delete(working, j, j+1)
				j--
				continue
			}
			if c.IsMarkerInBounds(m) {
				c.AddMarker(m)
				found = true
				break
			}
		}

		if !found {
			c := e.newCluster(pos)
			c.AddMarker(m)
			e.clusters = append(e.clusters, c)
			working = append(working, c)
		}
	}
}

// gridClustering seeds one empty cluster per grid cell of 2*GridSize pixels
// whose center lies in the extended viewport, then assigns each candidate
// to the first cell cluster containing it.
func (e *Engine) gridClustering() {
	extended, ok := e.extendedViewport()
	if !ok {
		return
	}
	view, _ := e.viewport.Bounds()
	proj := e.viewport.Projection()

	seed := view
	if e.opts.GridGlobal {
		seed = globalGridBound
	}
	e.seedGrid(seed, extended, proj)

	markers := e.index.Sorted()
	first := e.index.LowerBound(extended.Min.Lon())
	for _, m := range markers[first:] {
		if m.lng() > extended.Max.Lon() {
			break
		}
		if _, ok := e.candidate(m, extended); !ok {
			continue
		}
		for _, c := range e.clusters {
			if c.IsMarkerInBounds(m) {
				c.AddMarker(m)
				break
			}
		}
	}
}

func (e *Engine) seedGrid(seed, extended orb.Bound, proj Projection) {
	step := 2 * float64(e.opts.GridSize)
	half := float64(e.opts.GridSize)

	tr := proj.GeoToPixel(orb.Point{seed.Max.Lon(), seed.Max.Lat()})
	bl := proj.GeoToPixel(orb.Point{seed.Min.Lon(), seed.Min.Lat()})
	if tr[0] < 0 {
		tr[0] = -tr[0]
	}
	if bl[0] > 0 {
		bl[0] = -bl[0]
	}

	// Cells whose center is outside the extended box are never kept, so the
	// walk only covers the grid lines that can reach it.
	extTL := proj.GeoToPixel(orb.Point{extended.Min.Lon(), extended.Max.Lat()})
	extBR := proj.GeoToPixel(orb.Point{extended.Max.Lon(), extended.Min.Lat()})
	x0 := gridStart(bl[0], extTL[0]-half, step)
	y0 := gridStart(tr[1], extTL[1]-half, step)
	xEnd := min(tr[0], extBR[0]+step)
	yEnd := min(bl[1], extBR[1]+step)

	for x := x0; x < xEnd; x += step {
		for y := y0; y < yEnd; y += step {
			center := proj.PixelToGeo(orb.Point{x + half, y + half})
			if extended.Contains(center) {
				e.clusters = append(e.clusters, e.newCluster(center))
			}
		}
	}
}

// gridStart returns the first grid line at origin+k*step (k >= 0) that is
// within one step of target.
func gridStart(origin, target, step float64) float64 {
	if target <= origin {
		return origin
	}
	k := float64(int((target-origin)/step) - 1)
	if k < 0 {
		k = 0
	}
	return origin + k*step
}

// candidate returns the marker's position and whether it takes part in the
// pass. Markers inside the latitude band that the host hid are detached;
// markers without a position are skipped.
func (e *Engine) candidate(m *Marker, extended orb.Bound) (orb.Point, bool) {
	pos, ok := m.Position()
	if !ok {
		return orb.Point{}, false
	}
	if !inLatitudeBand(extended, pos) {
		return pos, false
	}
	if !m.Visible() {
		m.detach()
		return pos, false
	}
	return pos, true
}

func (e *Engine) extendedViewport() (orb.Bound, bool) {
	if e.viewport.Projection() == nil {
		return orb.Bound{}, false
	}
	view, ok := e.viewport.Bounds()
	if !ok {
		return orb.Bound{}, false
	}
	return e.extend(view), true
}

func (e *Engine) newCluster(center orb.Point) *Cluster {
	e.nextID++
	return newCluster(e, e.nextID, center)
}

// extend pads b by the grid size through the current projection
func (e *Engine) extend(b orb.Bound) orb.Bound {
	return ExtendBounds(b, e.viewport.Projection(), float64(e.opts.GridSize))
}

func (e *Engine) zoom() int {
	return e.viewport.Zoom()
}

func (e *Engine) calculate(markers []*Marker) Sums {
	return e.calculator(markers, len(e.opts.Styles))
}

func (e *Engine) tag(m *Marker, clusterID int) {
	e.assignments[m.ID()] = clusterID
}

// untag drops the association only if no later cluster overwrote it
func (e *Engine) untag(m *Marker, clusterID int) {
	if e.assignments[m.ID()] == clusterID {
		delete(e.assignments, m.ID())
	}
}

func (e *Engine) clearAssignments() {
	clear(e.assignments)
}
