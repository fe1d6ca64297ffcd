package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kwv/geocluster/clusterer"
	"github.com/kwv/geocluster/viewer"
)

const defaultConfigFile = "config.yaml"

// App holds the configuration and the shared clustered view
type App struct {
	Config    *clusterer.Config
	Session   *clusterer.Session
	Feed      *clusterer.MarkerFeed
	Publisher *clusterer.Publisher
	Source    *clusterer.MarkerSource // set when markers come from a URL

	opts AppOptions
}

// NewApp creates an App with no options applied
func NewApp() *App {
	return &App{}
}

// ApplyOptions applies CLI options to the App
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file. A missing default config falls back to
// DefaultConfig; an explicitly named one must exist.
func (a *App) loadConfig() (*clusterer.Config, error) {
	path := a.opts.ConfigFile
	if path == "" {
		path = defaultConfigFile
	}

	config, err := clusterer.LoadConfig(path)
	if err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) && path == defaultConfigFile {
			log.Printf("No %s found, using defaults", path)
			config = clusterer.DefaultConfig()
		} else {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		log.Printf("Loaded config from %s", path)
	}

	if a.opts.Lat != nil {
		config.View.Lat = *a.opts.Lat
	}
	if a.opts.Lng != nil {
		config.View.Lng = *a.opts.Lng
	}
	if a.opts.Zoom != nil {
		config.View.Zoom = *a.opts.Zoom
	}
	if a.opts.MarkersSource != "" {
		config.Markers = a.opts.MarkersSource
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// setup loads the config, creates the session and the initial markers
func (a *App) setup(ctx context.Context) error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.Config = config

	session, err := clusterer.NewSession(config.View.Width, config.View.Height,
		config.View.Center(), config.View.Zoom, config.Clustering)
	if err != nil {
		return fmt.Errorf("creating clusterer: %w", err)
	}
	a.Session = session

	if config.Markers == "" {
		return nil
	}
	updates, err := a.loadMarkers(ctx, config.Markers)
	if err != nil {
		return fmt.Errorf("loading markers: %w", err)
	}
	if err := session.ApplyUpdates(updates); err != nil {
		return fmt.Errorf("applying markers: %w", err)
	}
	log.Printf("Loaded %d markers from %s", len(updates), config.Markers)
	return nil
}

func (a *App) loadMarkers(ctx context.Context, source string) ([]clusterer.MarkerUpdate, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return clusterer.LoadMarkersFile(source)
	}
	src, err := clusterer.NewMarkerSource(source)
	if err != nil {
		return nil, err
	}
	a.Source = src
	updates, _, err := src.Refresh(ctx)
	return updates, err
}

// watchSource applies changed remote collections until ctx is done
func (a *App) watchSource(ctx context.Context) {
	if a.Source == nil || a.Config.MarkersRefresh <= 0 {
		return
	}
	go a.Source.Watch(ctx, a.Config.MarkersRefresh, func(updates []clusterer.MarkerUpdate) {
		if err := a.Session.ApplyUpdates(updates); err != nil {
			log.Printf("[FEED] applying %d markers from %s: %v", len(updates), a.Source.URL(), err)
			return
		}
		log.Printf("[FEED] refreshed %d markers from %s", len(updates), a.Source.URL())
	})
}

// RunRender writes the clustered view once in the selected format
func (a *App) RunRender() error {
	if err := a.setup(context.Background()); err != nil {
		return err
	}
	defer a.Session.Close()

	snap := a.Session.Snapshot()
	fmt.Printf("Zoom %d: %d markers in %d clusters (%d shown), %d drawn individually\n",
		snap.Zoom, snap.TotalMarkers, len(snap.Clusters), len(snap.VisibleClusters()), len(snap.Markers))

	output := a.opts.OutputFile
	format := a.opts.RenderFormat
	if format == "" {
		format = FormatRaster
	}

	if format == FormatRaster || format == FormatBoth {
		path := withExt(output, ".png")
		if err := clusterer.NewRenderer().SavePNG(path, snap); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", path)
	}

	if format == FormatVector || format == FormatBoth {
		path := withExt(output, ".svg")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		if err := clusterer.NewVectorRenderer().RenderToSVG(f, snap); err != nil {
			return fmt.Errorf("rendering %s: %w", path, err)
		}
		fmt.Printf("Saved %s\n", path)
	}
	return nil
}

// withExt replaces the extension of path
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// startFeed subscribes to the marker feed and publishes a summary after
// every pass until ctx is done.
func (a *App) startFeed(ctx context.Context) error {
	feed, err := clusterer.InitMarkerFeed(a.Config, func(updates []clusterer.MarkerUpdate, err error) {
		if err != nil {
			return
		}
		if err := a.Session.ApplyUpdates(updates); err != nil {
			log.Printf("[FEED] applying %d updates: %v", len(updates), err)
		}
	})
	if err != nil {
		return fmt.Errorf("initializing MQTT: %w", err)
	}
	if feed == nil {
		return fmt.Errorf("MQTT broker not configured")
	}
	a.Feed = feed

	settings := clusterer.ResolveMQTTSettings(a.Config.MQTT)
	a.Publisher = clusterer.NewPublisher(feed.Client(), settings.PublishPrefix)
	go a.Publisher.Run(ctx)
	a.Session.OnPass(a.Publisher.Enqueue)
	return nil
}

// RunService serves HTTP and/or follows the MQTT feed until interrupted
func (a *App) RunService() error {
	fmt.Println("Starting geocluster service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.setup(ctx); err != nil {
		return err
	}
	defer a.Session.Close()

	if a.opts.MqttMode {
		if err := a.startFeed(ctx); err != nil {
			return err
		}
		defer a.Feed.Disconnect()
	}

	a.watchSource(ctx)

	var server *http.Server
	if a.opts.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort),
			Handler:           newHTTPServer(a.Session),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")
	if a.opts.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Printf("  Marker feed: %s\n", a.Feed.Topic())
		fmt.Printf("  Publishing to: %s\n", a.Publisher.Topic())
	}
	if a.Source != nil && a.Config.MarkersRefresh > 0 {
		fmt.Printf("\nMarker source: %s (every %s)\n", a.Source.URL(), a.Config.MarkersRefresh)
	}
	if a.opts.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
		fmt.Println("  GET  /health            - Health check")
		fmt.Println("  GET  /clusters          - Clusters as JSON")
		fmt.Println("  GET  /clusters.geojson  - Clusters as GeoJSON")
		fmt.Println("  GET  /clusters.png      - Raster view")
		fmt.Println("  GET  /clusters.svg      - Vector view")
		fmt.Println("  POST /markers           - Apply marker updates")
		fmt.Println("  (lat, lng and zoom query parameters move the view)")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	fmt.Println("Service stopped")
	return nil
}

// RunTUI opens the terminal viewer. Logs go to geocluster.log while it runs.
func (a *App) RunTUI() error {
	logFile, err := tea.LogToFile("geocluster.log", "geocluster")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.setup(ctx); err != nil {
		return err
	}
	defer a.Session.Close()

	if a.opts.MqttMode {
		if err := a.startFeed(ctx); err != nil {
			return err
		}
		defer a.Feed.Disconnect()
	}
	a.watchSource(ctx)

	_, err = tea.NewProgram(viewer.New(a.Session), tea.WithAltScreen()).Run()
	return err
}
