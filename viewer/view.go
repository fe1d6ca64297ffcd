package viewer

import (
	"strings"

	"github.com/kwv/geocluster/clusterer"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	cols, rows := m.mapSize()

	var b strings.Builder
	b.WriteString(titleStyle.Render(" geocluster ") + dimStyle.Render(m.status))
	b.WriteString("\n")
	for _, line := range renderGrid(m.snap, cols, rows) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderGrid draws the snapshot into rows of cols cells. Markers are dots;
// a visible cluster writes its label centered on its cell, over any marker.
func renderGrid(snap clusterer.Snapshot, cols, rows int) []string {
	cells := make([][]string, rows)
	for y := range cells {
		cells[y] = make([]string, cols)
		for x := range cells[y] {
			cells[y][x] = " "
		}
	}

	inGrid := func(x, y int) bool { return x >= 0 && x < cols && y >= 0 && y < rows }

	for _, mk := range snap.Markers {
		x, y := cellOf(mk.Pixel[0], mk.Pixel[1])
		if inGrid(x, y) {
			cells[y][x] = markerStyle.Render("•")
		}
	}

	for _, c := range snap.VisibleClusters() {
		x, y := cellOf(c.Pixel[0], c.Pixel[1])
		style := bucketStyle(c.Sums.Index)
		start := x - len(c.Sums.Text)/2
		for i, r := range c.Sums.Text {
			if inGrid(start+i, y) {
				cells[y][start+i] = style.Render(string(r))
			}
		}
	}

	lines := make([]string, rows)
	for y, row := range cells {
		lines[y] = strings.Join(row, "")
	}
	return lines
}

func cellOf(px, py float64) (int, int) {
	x, y := px/CellWidth, py/CellHeight
	if x < 0 {
		x--
	}
	if y < 0 {
		y--
	}
	return int(x), int(y)
}
