package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Render formats accepted by --format
const (
	FormatRaster = "raster"
	FormatVector = "vector"
	FormatBoth   = "both"
)

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile    string
	MarkersSource string
	OutputFile    string
	RenderFormat  string
	RenderOnly    bool
	HttpMode      bool
	HttpPort      int
	MqttMode      bool
	TUIMode       bool

	// View overrides; nil keeps the config value
	Lat  *float64
	Lng  *float64
	Zoom *int
}

// Runner executes the selected mode
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunRender() error
	RunService() error
	RunTUI() error
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("geocluster", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.MarkersSource, "markers", "", "GeoJSON marker file or http(s) URL (overrides config)")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render the clustered view and exit")
	fs.StringVar(&opts.RenderFormat, "format", FormatRaster, "Render format: raster, vector, or both")
	fs.StringVar(&opts.OutputFile, "output", "clusters.png", "Output file for --render mode")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for cluster endpoints")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Subscribe to the marker feed and publish cluster summaries")
	fs.BoolVar(&opts.TUIMode, "tui", false, "Open the interactive terminal viewer")
	lat := fs.Float64("lat", 0, "View center latitude")
	lng := fs.Float64("lng", 0, "View center longitude")
	zoom := fs.Int("zoom", 0, "View zoom level")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			opts.Lat = lat
		case "lng":
			opts.Lng = lng
		case "zoom":
			opts.Zoom = zoom
		}
	})

	switch opts.RenderFormat {
	case FormatRaster, FormatVector, FormatBoth:
	default:
		return fmt.Errorf("invalid --format %q: must be raster, vector, or both", opts.RenderFormat)
	}

	_, _ = fmt.Fprintf(out, "geocluster version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.RenderOnly:
		return app.RunRender()
	case opts.TUIMode:
		return app.RunTUI()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	_, _ = fmt.Fprintln(out, "Use --render to write the clustered view to --output")
	_, _ = fmt.Fprintln(out, "Use --http to serve cluster endpoints")
	_, _ = fmt.Fprintln(out, "Use --mqtt to follow the marker feed and publish clusters")
	_, _ = fmt.Fprintln(out, "Use --tui to browse the clusters in the terminal")
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}
