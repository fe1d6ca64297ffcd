package clusterer

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Cluster accumulates the markers that fall inside its extended bounds.
// Clusters are created by the engine for a single pass and removed once
// superseded; a removed cluster is never reused.
type Cluster struct {
	id      int
	engine  *Engine
	center  orb.Point
	bounds  orb.Bound // center padded by the grid size
	markers []*Marker
	icon    Icon

	sums    Sums
	shown   bool // aggregate icon visible
	removed bool
}

func newCluster(e *Engine, id int, center orb.Point) *Cluster {
	c := &Cluster{
		id:     id,
		engine: e,
		center: center,
		icon:   e.iconFactory(id),
	}
	c.calculateBounds()
	return c
}

// ID returns the cluster's identity, unique per engine
func (c *Cluster) ID() int { return c.id }

// ClassID is the cluster's tag in the "<className>-<id>" form
func (c *Cluster) ClassID() string {
	return fmt.Sprintf("%s-%d", c.engine.opts.ClassName, c.id)
}

// Center returns the cluster's representative position
func (c *Cluster) Center() orb.Point { return c.center }

// ExtendedBounds returns the box a marker must fall in to join the cluster
func (c *Cluster) ExtendedBounds() orb.Bound { return c.bounds }

// Size returns the number of members
func (c *Cluster) Size() int { return len(c.markers) }

// Markers returns the members in insertion order
func (c *Cluster) Markers() []*Marker { return c.markers }

// Sums returns the bucket and label last computed for the aggregate icon
func (c *Cluster) Sums() Sums { return c.sums }

// Shown reports whether the aggregate icon is visible
func (c *Cluster) Shown() bool { return c.shown }

// Removed reports whether the cluster has been torn down
func (c *Cluster) Removed() bool { return c.removed }

// Bounds returns the bounding box of the center and every member position
func (c *Cluster) Bounds() orb.Bound {
	var acc boundsAccumulator
	acc.addPoint(c.center)
	for _, m := range c.markers {
		if p, ok := m.Position(); ok {
			acc.addPoint(p)
		}
	}
	b, _ := acc.result()
	return b
}

// IsMarkerInBounds reports whether the marker lies inside the extended bounds
func (c *Cluster) IsMarkerInBounds(m *Marker) bool {
	p, ok := m.Position()
	if !ok {
		return false
	}
	return c.bounds.Contains(p)
}

// AddMarker adds m to the cluster and updates member and icon visibility.
// It returns false if m is already a member.
func (c *Cluster) AddMarker(m *Marker) bool {
	if c.removed || c.contains(m) {
		return false
	}
	c.engine.tag(m, c.id)
	c.markers = append(c.markers, m)
	c.updateCenter(m)

	minSize := c.engine.opts.MinClusterSize
	switch n := len(c.markers); {
	case n < minSize:
		c.showMember(m)
	case n == minSize:
		for _, member := range c.markers {
			c.hideMember(member)
		}
	default:
		c.hideMember(m)
	}
	c.UpdateIcon()
	return true
}

// UpdateIcon recomputes the aggregate icon. Above the maximum zoom every
// member is drawn individually and the icon is hidden.
func (c *Cluster) UpdateIcon() {
	if c.removed {
		return
	}
	maxZoom := c.engine.opts.MaxZoom
	if maxZoom > 0 && c.engine.zoom() > maxZoom {
		for _, m := range c.markers {
			c.showMember(m)
		}
		c.hideIcon()
		return
	}
	if len(c.markers) < c.engine.opts.MinClusterSize {
		c.hideIcon()
		return
	}

	c.sums = c.engine.calculate(c.markers)
	c.icon.SetSums(c.sums)
	c.icon.SetCenter(c.center)
	c.icon.Show()
	c.shown = true
}

// Remove detaches the icon and drops the members
func (c *Cluster) Remove() {
	if c.removed {
		return
	}
	c.icon.Remove()
	c.shown = false
	for _, m := range c.markers {
		c.engine.untag(m, c.id)
	}
	c.markers = nil
	c.removed = true
}

func (c *Cluster) hideIcon() {
	c.icon.Hide()
	c.shown = false
}

func (c *Cluster) contains(m *Marker) bool {
	for _, member := range c.markers {
		if member == m {
			return true
		}
	}
	return false
}

// showMember draws m individually, unless the host hid it
func (c *Cluster) showMember(m *Marker) {
	if m.Visible() {
		m.attach()
	} else {
		m.detach()
	}
}

func (c *Cluster) hideMember(m *Marker) {
	m.detach()
}

// updateCenter moves the center to the running mean of the members when
// average centering is enabled; m has already been appended.
func (c *Cluster) updateCenter(m *Marker) {
	if !c.engine.opts.AverageCenter {
		return
	}
	p, ok := m.Position()
	if !ok {
		return
	}
	n := float64(len(c.markers))
	c.center = orb.Point{
		(c.center.Lon()*(n-1) + p.Lon()) / n,
		(c.center.Lat()*(n-1) + p.Lat()) / n,
	}
	c.calculateBounds()
}

func (c *Cluster) calculateBounds() {
	c.bounds = c.engine.extend(pointBound(c.center))
}
