package clusterer

import (
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer draws a snapshot with tdewolff/canvas. Canvas units are
// viewport pixels; the y axis is flipped because canvas grows upwards.
type VectorRenderer struct {
	MarkerColor  color.RGBA
	BucketColors []color.RGBA
	MarkerRadius float64
	Resolution   canvas.Resolution // PNG output only
}

// NewVectorRenderer creates a vector renderer with default colors
func NewVectorRenderer() *VectorRenderer {
	return &VectorRenderer{
		MarkerColor:  color.RGBA{200, 30, 30, 255},
		BucketColors: DefaultBucketColors(),
		MarkerRadius: 4,
		Resolution:   canvas.DPMM(1),
	}
}

type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the snapshot as SVG
func (r *VectorRenderer) RenderToSVG(w io.Writer, snap Snapshot) error {
	width, height := canvasSize(snap)
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, snap, width, height)
	return svgRenderer.Close()
}

// RenderToPNG rasterizes the same scene
func (r *VectorRenderer) RenderToPNG(w io.Writer, snap Snapshot) error {
	width, height := canvasSize(snap)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, snap, width, height)
	return png.Encode(w, rast)
}

func canvasSize(snap Snapshot) (float64, float64) {
	return float64(max(snap.Width, 1)), float64(max(snap.Height, 1))
}

// renderToCanvas draws the background, the single markers and the cluster discs.
// TODO: draw count labels once a font face is embedded; bucket is shown by color and size only.
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, snap Snapshot, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	markerStyle := canvas.DefaultStyle
	markerStyle.Fill = canvas.Paint{Color: r.MarkerColor}
	markerStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, m := range snap.Markers {
		path := canvas.Circle(r.MarkerRadius).Translate(m.Pixel[0], height-m.Pixel[1])
		renderer.RenderPath(path, markerStyle, canvas.Identity)
	}

	for _, c := range snap.VisibleClusters() {
		fill := bucketColor(r.BucketColors, c.Sums.Index)
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: fill}
		style.Stroke = canvas.Paint{Color: darken(fill)}
		style.StrokeWidth = 2

		radius := float64(clusterSize(snap, c)) / 2
		path := canvas.Circle(radius).Translate(c.Pixel[0], height-c.Pixel[1])
		renderer.RenderPath(path, style, canvas.Identity)
	}
}
