package clusterer

import "github.com/paulmach/orb"

// Icon is the visual representation of a cluster on the host surface.
// The clusterer decides when it is shown and what it displays; drawing it is
// up to the implementation.
type Icon interface {
	SetSums(s Sums)
	SetCenter(center orb.Point)
	Show()
	Hide()
	Remove()
}

// IconFactory creates the icon for a new cluster
type IconFactory func(clusterID int) Icon

type nopIcon struct{}

func (nopIcon) SetSums(Sums)         {}
func (nopIcon) SetCenter(orb.Point)  {}
func (nopIcon) Show()                {}
func (nopIcon) Hide()                {}
func (nopIcon) Remove()              {}

func nopIconFactory(int) Icon { return nopIcon{} }
