package clusterer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration from a YAML file. Fields missing from
// the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the view and clustering sections
func (c *Config) Validate() error {
	if err := c.Clustering.withDefaults().Validate(); err != nil {
		return fmt.Errorf("clustering: %w", err)
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("view size must be positive, got %dx%d", c.View.Width, c.View.Height)
	}
	if c.View.Zoom < MinViewZoom || c.View.Zoom > MaxViewZoom {
		return fmt.Errorf("view.zoom must be within [%d, %d], got %d", MinViewZoom, MaxViewZoom, c.View.Zoom)
	}
	if c.View.Lat < -90 || c.View.Lat > 90 {
		return fmt.Errorf("view.lat out of range: %v", c.View.Lat)
	}
	if c.View.Lng < -180 || c.View.Lng > 180 {
		return fmt.Errorf("view.lng out of range: %v", c.View.Lng)
	}
	if c.MarkersRefresh < 0 {
		return fmt.Errorf("markersRefresh must not be negative, got %v", c.MarkersRefresh)
	}
	if c.MQTT.Broker != "" && c.MQTT.MarkerTopic == "" && c.MQTT.PublishPrefix == "" {
		return fmt.Errorf("mqtt.broker is set but neither markerTopic nor publishPrefix is")
	}
	return nil
}
