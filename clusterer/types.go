package clusterer

import (
	"errors"
	"fmt"
)

// Default option values
const (
	DefaultGridSize       = 60
	DefaultMinClusterSize = 2
	DefaultMaxZoom        = 17
	DefaultClassName      = "cluster"
	DefaultImagePath      = "https://maps-tools-242a6.firebaseapp.com/clusterer/images/m"
	DefaultImageExtension = "png"
)

// defaultStyleSizes are the icon sizes of the five built-in styles.
var defaultStyleSizes = []int{53, 56, 66, 78, 90}

var (
	// ErrUnavailable is returned when the host viewport cannot support clustering.
	ErrUnavailable = errors.New("clustering unavailable")

	// ErrDestroyed is returned by mutations on a destroyed controller.
	ErrDestroyed = errors.New("clusterer destroyed")

	// ErrPassInProgress is returned when a mutation is attempted from inside a clustering pass.
	ErrPassInProgress = errors.New("clustering pass in progress")

	// ErrInvalidOptions wraps construction-time misconfiguration.
	ErrInvalidOptions = errors.New("invalid clusterer options")

	// ErrMarkerExists is returned when a marker is created with an ID already in use.
	ErrMarkerExists = errors.New("marker already exists")
)

// Strategy selects the clustering algorithm
type Strategy string

const (
	// StrategyIncremental grows clusters around the first marker that does not
	// fit an existing cluster.
	StrategyIncremental Strategy = "incremental"
	// StrategyGrid seeds one cluster per fixed grid cell.
	StrategyGrid Strategy = "grid"
)

// Style describes how one bucket of clusters is drawn
type Style struct {
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	URL    string `yaml:"url" json:"url"`
}

// Sums is the bucket index and label computed for a cluster
type Sums struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Options holds the construction-time clustering configuration
type Options struct {
	GridSize       int      `yaml:"gridSize" json:"gridSize"`             // pixels
	MinClusterSize int      `yaml:"minClusterSize" json:"minClusterSize"` // members needed before the aggregate replaces them
	MaxZoom        int      `yaml:"maxZoom" json:"maxZoom"`               // clustering is suppressed above this zoom; 0 disables the limit
	AverageCenter  bool     `yaml:"averageCenter" json:"averageCenter"`
	Strategy       Strategy `yaml:"strategy" json:"strategy"`
	GridGlobal     bool     `yaml:"gridGlobal" json:"gridGlobal"`
	ZoomOnClick    bool     `yaml:"zoomOnClick" json:"zoomOnClick"` // host hint, not used by the engine
	ClassName      string   `yaml:"className,omitempty" json:"className,omitempty"`
	ImagePath      string   `yaml:"imagePath,omitempty" json:"imagePath,omitempty"`
	ImageExtension string   `yaml:"imageExtension,omitempty" json:"imageExtension,omitempty"`
	Styles         []Style  `yaml:"styles,omitempty" json:"styles,omitempty"`
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		GridSize:       DefaultGridSize,
		MinClusterSize: DefaultMinClusterSize,
		MaxZoom:        DefaultMaxZoom,
		AverageCenter:  true,
		Strategy:       StrategyIncremental,
		ZoomOnClick:    true,
		ClassName:      DefaultClassName,
		ImagePath:      DefaultImagePath,
		ImageExtension: DefaultImageExtension,
	}
}

// Validate reports the first option that would leave the engine inoperable
func (o Options) Validate() error {
	if o.GridSize <= 0 {
		return fmt.Errorf("%w: gridSize must be positive, got %d", ErrInvalidOptions, o.GridSize)
	}
	if o.MinClusterSize < 1 {
		return fmt.Errorf("%w: minClusterSize must be at least 1, got %d", ErrInvalidOptions, o.MinClusterSize)
	}
	if o.MaxZoom < 0 {
		return fmt.Errorf("%w: maxZoom must not be negative, got %d", ErrInvalidOptions, o.MaxZoom)
	}
	switch o.Strategy {
	case StrategyIncremental, StrategyGrid:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, o.Strategy)
	}
	return nil
}

// withDefaults fills zero-valued strings and the style list
func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = StrategyIncremental
	}
	if o.ClassName == "" {
		o.ClassName = DefaultClassName
	}
	if o.ImagePath == "" {
		o.ImagePath = DefaultImagePath
	}
	if o.ImageExtension == "" {
		o.ImageExtension = DefaultImageExtension
	}
	if len(o.Styles) == 0 {
		o.Styles = DefaultStyles(o.ImagePath, o.ImageExtension)
	}
	return o
}

// DefaultStyles builds the five built-in styles, e.g. ".../m1.png" at 53px
func DefaultStyles(imagePath, imageExtension string) []Style {
	styles := make([]Style, len(defaultStyleSizes))
	for i, size := range defaultStyleSizes {
		styles[i] = Style{
			Width:  size,
			Height: size,
			URL:    fmt.Sprintf("%s%d.%s", imagePath, i+1, imageExtension),
		}
	}
	return styles
}
