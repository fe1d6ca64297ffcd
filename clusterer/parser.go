package clusterer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseMarkerUpdates decodes a feed payload: either one update object or an
// array of them. Every update must carry an ID.
func ParseMarkerUpdates(payload []byte) ([]MarkerUpdate, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("parsing marker updates: empty payload")
	}

	var updates []MarkerUpdate
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &updates); err != nil {
			return nil, fmt.Errorf("parsing marker updates: %w", err)
		}
	} else {
		var u MarkerUpdate
		if err := json.Unmarshal(payload, &u); err != nil {
			return nil, fmt.Errorf("parsing marker update: %w", err)
		}
		updates = []MarkerUpdate{u}
	}

	for i, u := range updates {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
	}
	return updates, nil
}

// Validate checks that the update names a marker and carries either both
// coordinates, within range, or neither.
func (u MarkerUpdate) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("id is required")
	}
	if (u.Lat == nil) != (u.Lng == nil) {
		return fmt.Errorf("marker %s: lat and lng must be given together", u.ID)
	}
	if u.Lat != nil && (*u.Lat < -90 || *u.Lat > 90) {
		return fmt.Errorf("marker %s: lat out of range: %v", u.ID, *u.Lat)
	}
	if u.Lng != nil && (*u.Lng < -180 || *u.Lng > 180) {
		return fmt.Errorf("marker %s: lng out of range: %v", u.ID, *u.Lng)
	}
	return nil
}
