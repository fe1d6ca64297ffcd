package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/geocluster/clusterer"
)

// maxUpdateBody limits POST /markers bodies to 10 MB
const maxUpdateBody = 10 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(session *clusterer.Session) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		snap := session.Snapshot()
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			State     string    `json:"state"`
			Markers   int       `json:"markers"`
			Clusters  int       `json:"clusters"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			State:     snap.State,
			Markers:   snap.TotalMarkers,
			Clusters:  len(snap.Clusters),
		}
		writeJSON(w, "application/json", status)
	})

	mux.HandleFunc("/clusters", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := viewSnapshot(w, r, session)
		if !ok {
			return
		}
		writeJSON(w, "application/json", snap)
	})

	mux.HandleFunc("/clusters.geojson", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := viewSnapshot(w, r, session)
		if !ok {
			return
		}
		writeJSON(w, "application/geo+json", clusterer.SnapshotToFeatureCollection(snap))
	})

	mux.HandleFunc("/clusters.png", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := viewSnapshot(w, r, session)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := clusterer.NewRenderer().EncodePNG(w, snap); err != nil {
			log.Printf("[HTTP] Error encoding clusters PNG: %v", err)
		}
	})

	mux.HandleFunc("/clusters.svg", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := viewSnapshot(w, r, session)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := clusterer.NewVectorRenderer().RenderToSVG(w, snap); err != nil {
			log.Printf("[HTTP] Error rendering clusters SVG: %v", err)
		}
	})

	mux.HandleFunc("/markers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
			return
		}
		updates, err := clusterer.ParseMarkerUpdates(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := session.ApplyUpdates(updates); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("[HTTP] applied %d marker updates", len(updates))
		writeJSON(w, "application/json", struct {
			Applied int `json:"applied"`
		}{Applied: len(updates)})
	})

	return mux
}

// viewSnapshot moves the view per the lat, lng and zoom query parameters
// and returns the resulting snapshot. It writes a 400 on bad parameters.
func viewSnapshot(w http.ResponseWriter, r *http.Request, session *clusterer.Session) (clusterer.Snapshot, bool) {
	q := r.URL.Query()
	var change clusterer.ViewChange

	for _, p := range []struct {
		name     string
		min, max float64
		dst      **float64
	}{
		{"lat", -90, 90, &change.Lat},
		{"lng", -180, 180, &change.Lng},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < p.min || v > p.max {
			http.Error(w, fmt.Sprintf("invalid %s: %q", p.name, raw), http.StatusBadRequest)
			return clusterer.Snapshot{}, false
		}
		*p.dst = &v
	}

	if raw := q.Get("zoom"); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil || z < clusterer.MinViewZoom || z > clusterer.MaxViewZoom {
			http.Error(w, fmt.Sprintf("invalid zoom: %q", raw), http.StatusBadRequest)
			return clusterer.Snapshot{}, false
		}
		change.Zoom = &z
	}

	return session.SnapshotAt(change), true
}

func writeJSON(w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
