package clusterer

import (
	"slices"

	"github.com/paulmach/orb"
)

// ClusterView is a read-only copy of one cluster
type ClusterView struct {
	ID        int       `json:"id"`
	ClassID   string    `json:"classId"`
	Center    orb.Point `json:"center"`
	Pixel     orb.Point `json:"pixel"`
	Bounds    orb.Bound `json:"-"`
	BBox      []float64 `json:"bbox"`
	Size      int       `json:"size"`
	Sums      Sums      `json:"sums"`
	Visible   bool      `json:"visible"`
	MarkerIDs []string  `json:"markerIds"`
}

// MarkerView is a marker drawn individually on the surface
type MarkerView struct {
	ID       string    `json:"id"`
	Position orb.Point `json:"position"`
	Pixel    orb.Point `json:"pixel"`
}

// Snapshot is the drawable state of a controller after a pass.
// Pixels are in the viewport's coordinates at the time of the snapshot.
type Snapshot struct {
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Zoom         int           `json:"zoom"`
	State        string        `json:"state"`
	View         orb.Bound     `json:"-"`
	BBox         []float64     `json:"bbox"`
	TotalMarkers int           `json:"totalMarkers"`
	Clusters     []ClusterView `json:"clusters"`
	Markers      []MarkerView  `json:"markers"`
	Styles       []Style       `json:"-"`
}

// VisibleClusters returns the clusters whose aggregate icon is shown
func (s Snapshot) VisibleClusters() []ClusterView {
	var out []ClusterView
	for _, c := range s.Clusters {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// StyleFor returns the style of a bucket index (1-based)
func (s Snapshot) StyleFor(sums Sums) (Style, bool) {
	i := sums.Index - 1
	if i < 0 || i >= len(s.Styles) {
		return Style{}, false
	}
	return s.Styles[i], true
}

type sizer interface {
	Size() (int, int)
}

// Snapshot copies the live clusters and the individually drawn markers
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Zoom:         c.viewport.Zoom(),
		State:        c.state.String(),
		TotalMarkers: c.index.Len(),
		Clusters:     []ClusterView{},
		Markers:      []MarkerView{},
		Styles:       slices.Clone(c.engine.opts.Styles),
	}
	if sz, ok := c.viewport.(sizer); ok {
		snap.Width, snap.Height = sz.Size()
	}
	if b, ok := c.viewport.Bounds(); ok {
		snap.View = b
		snap.BBox = bbox(b)
	}

	proj := c.viewport.Projection()
	toPixel := func(p orb.Point) orb.Point {
		if proj == nil {
			return orb.Point{}
		}
		return proj.GeoToPixel(p)
	}

	for _, cl := range c.engine.Clusters() {
		ids := make([]string, len(cl.markers))
		for i, m := range cl.markers {
			ids[i] = m.ID()
		}
		b := cl.Bounds()
		snap.Clusters = append(snap.Clusters, ClusterView{
			ID:        cl.ID(),
			ClassID:   cl.ClassID(),
			Center:    cl.Center(),
			Pixel:     toPixel(cl.Center()),
			Bounds:    b,
			BBox:      bbox(b),
			Size:      cl.Size(),
			Sums:      cl.Sums(),
			Visible:   cl.Shown(),
			MarkerIDs: ids,
		})
	}

	for _, m := range c.index.markers {
		if !m.Attached() {
			continue
		}
		p, ok := m.Position()
		if !ok {
			continue
		}
		snap.Markers = append(snap.Markers, MarkerView{ID: m.ID(), Position: p, Pixel: toPixel(p)})
	}
	return snap
}

// bbox is the GeoJSON [west, south, east, north] form of b
func bbox(b orb.Bound) []float64 {
	return []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}
