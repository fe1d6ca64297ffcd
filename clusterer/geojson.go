package clusterer

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseMarkersGeoJSON reads a FeatureCollection of Point features as marker
// updates. The marker ID is the feature id, falling back to an "id"
// property; a "visible" property hides the marker when false. A feature with
// a null geometry becomes a marker without a position.
func ParseMarkersGeoJSON(data []byte) ([]MarkerUpdate, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	updates := make([]MarkerUpdate, 0, len(fc.Features))
	for i, f := range fc.Features {
		u := MarkerUpdate{ID: featureID(f)}

		switch g := f.Geometry.(type) {
		case nil:
		case orb.Point:
			lat, lng := g.Lat(), g.Lon()
			u.Lat, u.Lng = &lat, &lng
		default:
			return nil, fmt.Errorf("feature %d: geometry %s is not a Point", i, g.GeoJSONType())
		}

		if _, ok := f.Properties["visible"]; ok {
			visible := f.Properties.MustBool("visible", true)
			u.Visible = &visible
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// LoadMarkersFile reads and parses a GeoJSON marker file
func LoadMarkersFile(path string) ([]MarkerUpdate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseMarkersGeoJSON(data)
}

func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return f.Properties.MustString("id", "")
}

// SnapshotToFeatureCollection exports the visible clusters and the
// individually drawn markers as Point features.
func SnapshotToFeatureCollection(snap Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if snap.BBox != nil {
		fc.BBox = geojson.NewBBox(snap.View)
	}

	for _, c := range snap.VisibleClusters() {
		f := geojson.NewFeature(c.Center)
		f.ID = c.ClassID
		f.BBox = geojson.NewBBox(c.Bounds)
		f.Properties["cluster"] = true
		f.Properties["cluster_id"] = c.ID
		f.Properties["point_count"] = c.Size
		f.Properties["bucket"] = c.Sums.Index
		f.Properties["label"] = c.Sums.Text
		if style, ok := snap.StyleFor(c.Sums); ok {
			f.Properties["icon"] = style.URL
			f.Properties["icon_size"] = style.Width
		}
		fc.Append(f)
	}

	for _, m := range snap.Markers {
		f := geojson.NewFeature(m.Position)
		f.ID = m.ID
		f.Properties["cluster"] = false
		fc.Append(f)
	}
	return fc
}
