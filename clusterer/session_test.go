package clusterer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(512, 512, orb.Point{0, 0}, 2, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func closePair() []MarkerUpdate {
	return []MarkerUpdate{
		{ID: "a", Lat: ptr(0.0), Lng: ptr(0.0)},
		{ID: "b", Lat: ptr(0.2), Lng: ptr(0.2)},
	}
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)

	snap := s.Snapshot()
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, 512, snap.Width)
	assert.Equal(t, 512, snap.Height)
	assert.Equal(t, 2, snap.Zoom)
	assert.Empty(t, snap.Clusters)

	_, err := NewSession(512, 512, orb.Point{}, 2, Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestSession_ZoomSplitsClusters(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.ApplyUpdates(closePair()))

	snap := s.Snapshot()
	require.Len(t, snap.VisibleClusters(), 1)
	assert.Equal(t, 2, snap.VisibleClusters()[0].Size)
	assert.Empty(t, snap.Markers)

	s.ZoomBy(8)

	snap = s.Snapshot()
	assert.Equal(t, 10, snap.Zoom)
	assert.Empty(t, snap.VisibleClusters())
	assert.Len(t, snap.Clusters, 2)
	assert.Len(t, snap.Markers, 2)
}

func TestSession_AntimeridianKeepsDistantMarkersApart(t *testing.T) {
	s, err := NewSession(800, 600, orb.Point{179.5, 0}, 5, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.ApplyUpdates([]MarkerUpdate{
		{ID: "east-of-180", Lat: ptr(0.0), Lng: ptr(-178.5)},
		{ID: "greenwich", Lat: ptr(0.0), Lng: ptr(0.0)},
		{ID: "far", Lat: ptr(0.0), Lng: ptr(100.0)},
	}))

	snap := s.Snapshot()
	require.Len(t, snap.Clusters, 3)
	for _, c := range snap.Clusters {
		assert.Equal(t, 1, c.Size, "cluster %d: %v", c.ID, c.MarkerIDs)
	}
	assert.Empty(t, snap.VisibleClusters())
}

func TestSession_SnapshotAt(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.ApplyUpdates(closePair()))

	snap := s.SnapshotAt(ViewChange{Lat: ptr(10.0)})
	center, zoom, _, _ := s.View()
	assert.InDelta(t, 10, center.Lat(), 1e-9)
	assert.InDelta(t, 0, center.Lon(), 1e-9, "longitude is kept")
	assert.Equal(t, 2, zoom)
	assert.Equal(t, 2, snap.Zoom)

	snap = s.SnapshotAt(ViewChange{})
	assert.Equal(t, 2, snap.Zoom)
	assert.Zero(t, s.view.PendingFrames())
}

func TestSession_SnapshotAtIsAtomic(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.ApplyUpdates(closePair()))

	var wg sync.WaitGroup
	errs := make(chan string, 8*50)
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zoom := 2 + w
			lng := float64(w)
			for range 50 {
				snap := s.SnapshotAt(ViewChange{Lng: &lng, Zoom: &zoom})
				if snap.Zoom != zoom {
					errs <- fmt.Sprintf("asked for zoom %d, snapshot has %d", zoom, snap.Zoom)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestSession_AboveMaxZoom(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxZoom = 3
	s, err := NewSession(512, 512, orb.Point{}, 4, opts)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.ApplyUpdates(closePair()))

	snap := s.Snapshot()
	assert.Empty(t, snap.VisibleClusters())
	assert.Len(t, snap.Markers, 2)
}

func TestSession_SnapshotPaintsFrames(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.ApplyUpdates(closePair()))
	require.NoError(t, s.Redraw())

	snap := s.Snapshot()

	assert.Len(t, snap.Clusters, 1, "superseded clusters are torn down before the copy")
	assert.Zero(t, s.view.PendingFrames())
}

func TestSession_OnPass(t *testing.T) {
	s := newTestSession(t)
	var got []Snapshot
	s.OnPass(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, s.ApplyUpdates(closePair()))
	s.Pan(10, 0)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].TotalMarkers)
}

func TestSession_View(t *testing.T) {
	s := newTestSession(t)

	s.SetView(orb.Point{10, 20}, 5)
	s.Resize(300, 200)

	center, zoom, w, h := s.View()
	assert.InDelta(t, 10, center.Lon(), 1e-9)
	assert.InDelta(t, 20, center.Lat(), 1e-9)
	assert.Equal(t, 5, zoom)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestSession_ClearAndClose(t *testing.T) {
	s, err := NewSession(512, 512, orb.Point{}, 2, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.ApplyUpdates(closePair()))

	require.NoError(t, s.ClearMarkers())
	assert.Zero(t, s.Snapshot().TotalMarkers)

	s.Close()
	assert.ErrorIs(t, s.ApplyUpdates(closePair()), ErrDestroyed)
	assert.ErrorIs(t, s.Redraw(), ErrDestroyed)
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := newTestSession(t)
	var wg sync.WaitGroup

	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				lat, lng := float64(i%40), float64(w*10)
				err := s.ApplyUpdates([]MarkerUpdate{{ID: fmt.Sprintf("%d-%d", w, i), Lat: &lat, Lng: &lng}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			s.Snapshot()
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 20 {
			s.Pan(float64(i%3-1)*5, 0)
		}
	}()
	wg.Wait()

	assert.Equal(t, 200, s.Snapshot().TotalMarkers)
}
