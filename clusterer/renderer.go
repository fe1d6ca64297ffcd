package clusterer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultBucketColors are the fill colors of buckets 1 to 5
func DefaultBucketColors() []color.RGBA {
	return []color.RGBA{
		{66, 133, 244, 255}, // blue
		{251, 188, 5, 255},  // yellow
		{234, 67, 53, 255},  // red
		{233, 30, 99, 255},  // pink
		{156, 39, 176, 255}, // purple
	}
}

// fallbackClusterSize is the icon size used when a bucket has no style
const fallbackClusterSize = 40

// Renderer draws a snapshot as a raster image: single markers as dots and
// visible clusters as discs sized by their style, labelled with the count.
type Renderer struct {
	Background   color.RGBA
	MarkerColor  color.RGBA
	LabelColor   color.RGBA
	BucketColors []color.RGBA
	MarkerRadius int
}

// NewRenderer creates a renderer with default colors
func NewRenderer() *Renderer {
	return &Renderer{
		Background:   color.RGBA{245, 245, 240, 255},
		MarkerColor:  color.RGBA{200, 30, 30, 255},
		LabelColor:   color.RGBA{0, 0, 0, 255},
		BucketColors: DefaultBucketColors(),
		MarkerRadius: 4,
	}
}

// Render draws the snapshot at its viewport size
func (r *Renderer) Render(snap Snapshot) *image.RGBA {
	width, height := max(snap.Width, 1), max(snap.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, r.Background)
		}
	}

	for _, m := range snap.Markers {
		drawCircle(img, int(m.Pixel[0]), int(m.Pixel[1]), r.MarkerRadius, r.MarkerColor)
	}

	for _, c := range snap.VisibleClusters() {
		cx, cy := int(c.Pixel[0]), int(c.Pixel[1])
		radius := clusterSize(snap, c) / 2
		fill := r.bucketColor(c.Sums.Index)

		drawCircle(img, cx, cy, radius, darken(fill))
		drawCircle(img, cx, cy, max(radius-2, 1), fill)

		// basicfont glyphs are 7 px wide and sit 13 px tall around the baseline
		tx := cx - len(c.Sums.Text)*7/2
		ty := cy + 4
		drawText(img, tx, ty, c.Sums.Text, r.LabelColor)
	}
	return img
}

// EncodePNG renders the snapshot and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, snap Snapshot) error {
	return png.Encode(w, r.Render(snap))
}

// SavePNG renders the snapshot to a PNG file
func (r *Renderer) SavePNG(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := r.EncodePNG(f, snap); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) bucketColor(index int) color.RGBA {
	return bucketColor(r.BucketColors, index)
}

func bucketColor(colors []color.RGBA, index int) color.RGBA {
	if len(colors) == 0 {
		return color.RGBA{128, 128, 128, 255}
	}
	i := min(max(index, 1), len(colors)) - 1
	return colors[i]
}

// clusterSize is the icon width of the cluster's bucket
func clusterSize(snap Snapshot, c ClusterView) int {
	if style, ok := snap.StyleFor(c.Sums); ok && style.Width > 0 {
		return style.Width
	}
	return fallbackClusterSize
}

func darken(c color.RGBA) color.RGBA {
	return color.RGBA{c.R / 2, c.G / 2, c.B / 2, c.A}
}

// drawCircle draws a filled circle, clipped to the image
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	b := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawText renders text with its baseline at y
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
