package clusterer

import "sort"

// Resort policy thresholds
const (
	maxInsertionSortChanges = 300
	maxInsertionSortRatio   = 0.2
)

type sortMethod int

const (
	sortNone sortMethod = iota
	sortInsertion
	sortFull
)

// chooseSort picks the resort strategy for the given number of pending
// changes on an index of size markers. Insertion sort only wins when the
// index is large and the changes are a small perturbation of it.
func chooseSort(changes, size int) sortMethod {
	if changes == 0 {
		return sortNone
	}
	if changes > maxInsertionSortChanges || size == 0 {
		return sortFull
	}
	if float64(changes)/float64(size) < maxInsertionSortRatio {
		return sortInsertion
	}
	return sortFull
}

// MarkerIndex keeps markers ordered by ascending longitude.
// Mutations are counted and reconciled lazily on the next read.
// Markers with equal longitudes are in no particular order.
type MarkerIndex struct {
	markers  []*Marker
	changes  int
	lastSort sortMethod
}

// NewMarkerIndex creates an empty index
func NewMarkerIndex() *MarkerIndex {
	return &MarkerIndex{}
}

// Add appends a marker; it is put in place on the next read
func (ix *MarkerIndex) Add(m *Marker) {
	ix.markers = append(ix.markers, m)
	ix.changes++
}

// Touch records that a marker's longitude changed
func (ix *MarkerIndex) Touch() {
	ix.changes++
}

// Len returns the number of markers
func (ix *MarkerIndex) Len() int {
	return len(ix.markers)
}

// Clear drops every marker and pending change
func (ix *MarkerIndex) Clear() {
	ix.markers = nil
	ix.changes = 0
}

// Sorted returns the markers in ascending longitude order.
// The slice is owned by the index and is only valid until the next mutation.
func (ix *MarkerIndex) Sorted() []*Marker {
	if ix.changes == 0 {
		return ix.markers
	}
	ix.lastSort = chooseSort(ix.changes, len(ix.markers))
	switch ix.lastSort {
	case sortInsertion:
		insertionSort(ix.markers)
	case sortFull:
		sort.Slice(ix.markers, func(i, j int) bool {
			return ix.markers[i].lng() < ix.markers[j].lng()
		})
	}
	ix.changes = 0
	return ix.markers
}

// LowerBound returns the position of the first marker whose longitude is at
// or above lng, or Len() if there is none.
func (ix *MarkerIndex) LowerBound(lng float64) int {
	sorted := ix.Sorted()
	return sort.Search(len(sorted), func(i int) bool {
		return sorted[i].lng() >= lng
	})
}

func insertionSort(markers []*Marker) {
	for i := 1; i < len(markers); i++ {
		tmp := markers[i]
		key := tmp.lng()
		j := i - 1
		for ; j >= 0 && markers[j].lng() > key; j-- {
			markers[j+1] = markers[j]
		}
		markers[j+1] = tmp
	}
}
