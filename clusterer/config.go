package clusterer

import (
	"time"

	"github.com/paulmach/orb"
)

// Config is the service configuration file
type Config struct {
	Clustering Options    `yaml:"clustering" json:"clustering"`
	View       ViewConfig `yaml:"view" json:"view"`
	MQTT       MQTTConfig `yaml:"mqtt" json:"mqtt"`
	Markers    string     `yaml:"markers,omitempty" json:"markers,omitempty"` // GeoJSON file path or http(s) URL

	// MarkersRefresh polls an http(s) Markers collection in service mode; 0 disables it
	MarkersRefresh time.Duration `yaml:"markersRefresh,omitempty" json:"markersRefresh,omitempty"`
}

// ViewConfig is the initial viewport
type ViewConfig struct {
	Width  int     `yaml:"width" json:"width"`
	Height int     `yaml:"height" json:"height"`
	Lat    float64 `yaml:"lat" json:"lat"`
	Lng    float64 `yaml:"lng" json:"lng"`
	Zoom   int     `yaml:"zoom" json:"zoom"`
}

// Center returns the view center as a geo point
func (v ViewConfig) Center() orb.Point {
	return orb.Point{v.Lng, v.Lat}
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	MarkerTopic   string `yaml:"markerTopic" json:"markerTopic"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// DefaultConfig returns a config for a 1024x768 world view with default options
func DefaultConfig() *Config {
	return &Config{
		Clustering: DefaultOptions(),
		View: ViewConfig{
			Width:  1024,
			Height: 768,
			Zoom:   2,
		},
		MQTT: MQTTConfig{
			MarkerTopic:   "geocluster/markers",
			PublishPrefix: "geocluster",
			ClientID:      "geocluster",
		},
	}
}
