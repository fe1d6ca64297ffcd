package clusterer

import "github.com/paulmach/orb"

// Longitudes used in place of an anti-meridian crossing box
const (
	wrapWest = -179.0
	wrapEast = 179.0
)

// CrossesAntimeridian reports whether the bound's east edge is west of its west edge
func CrossesAntimeridian(b orb.Bound) bool {
	return b.Max.Lon() < b.Min.Lon()
}

// ExtendBounds pads b outwards by marginPx pixels using the projection.
//
// Each corner is moved in pixel space and projected back; it only replaces
// the original corner if it is strictly further out in both axes, so a
// projection round trip can never shrink the box. Projected longitudes are
// wrapped into [-180, 180], so a corner pushed across the anti-meridian
// lands on the wrong side and is dropped. A box crossing the anti-meridian
// is replaced by the band [-179, 179] at the same latitudes.
func ExtendBounds(b orb.Bound, proj Projection, marginPx float64) orb.Bound {
	if CrossesAntimeridian(b) {
		return orb.Bound{
			Min: orb.Point{wrapWest, b.Min.Lat()},
			Max: orb.Point{wrapEast, b.Max.Lat()},
		}
	}
	if proj == nil {
		return b
	}

	ne := orb.Point{b.Max.Lon(), b.Max.Lat()}
	sw := orb.Point{b.Min.Lon(), b.Min.Lat()}

	trPix := proj.GeoToPixel(ne)
	trPix[0] += marginPx
	trPix[1] -= marginPx

	blPix := proj.GeoToPixel(sw)
	blPix[0] -= marginPx
	blPix[1] += marginPx

	extNE := wrapPoint(proj.PixelToGeo(trPix))
	extSW := wrapPoint(proj.PixelToGeo(blPix))

	if extNE.Lat() > ne.Lat() && extNE.Lon() > ne.Lon() {
		b = b.Extend(extNE)
	}
	if extSW.Lat() < sw.Lat() && extSW.Lon() < sw.Lon() {
		b = b.Extend(extSW)
	}
	return b
}

func wrapPoint(p orb.Point) orb.Point {
	return orb.Point{wrapLongitude(p.Lon()), p.Lat()}
}

// pointBound is the degenerate bound around a single point
func pointBound(p orb.Point) orb.Bound {
	return orb.Bound{Min: p, Max: p}
}

// inLatitudeBand reports whether p is strictly between the bound's south and north edges
func inLatitudeBand(b orb.Bound, p orb.Point) bool {
	return p.Lat() > b.Min.Lat() && p.Lat() < b.Max.Lat()
}

// boundsAccumulator unions bounds and points, tracking whether anything was added
type boundsAccumulator struct {
	bound orb.Bound
	set   bool
}

func (a *boundsAccumulator) addPoint(p orb.Point) {
	if !a.set {
		a.bound = pointBound(p)
		a.set = true
		return
	}
	a.bound = a.bound.Extend(p)
}

func (a *boundsAccumulator) addBound(b orb.Bound) {
	if !a.set {
		a.bound = b
		a.set = true
		return
	}
	a.bound = a.bound.Union(b)
}

func (a *boundsAccumulator) result() (orb.Bound, bool) {
	return a.bound, a.set
}
