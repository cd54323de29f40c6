package flip

import "github.com/yuanying/zinespread/internal/spread"

// Rotation angles of a leaf around the spine, in degrees.
const (
	ClosedRotation = 0.0
	OpenRotation   = -180.0
)

// ZIndex returns the stacking order of a leaf.
//
// Closed leaves pile on the right with leaf 0 on top, open leaves pile on the
// left with the most recently turned (highest index) on top, every closed leaf
// sits above every open one, and the flipping leaf is above all of them. The
// wrong order shows the wrong page through the gap between the piles.
func ZIndex(leaf, leafCount int, state LeafState) int {
	switch state {
	case Flipping:
		return FlippingZ(leafCount)
	case Open:
		return leaf + 1
	default:
		return 2*leafCount - leaf
	}
}

// FlippingZ is the stacking order reserved for the leaf being turned.
func FlippingZ(leafCount int) int { return 2*leafCount + 1 }

// Rotation returns the resting angle of a committed state.
func Rotation(state LeafState) float64 {
	if state == Open {
		return OpenRotation
	}
	return ClosedRotation
}

// Shift returns the horizontal offset of the whole book at a spread, in the unit
// of pageWidth. A spread without a left page is shifted left by half a page and
// one without a right page right by half a page, so the single page stays centered.
func Shift(m *spread.Model, index int, pageWidth float64) float64 {
	s, err := m.Spread(m.ClampIndex(index))
	if err != nil {
		return 0
	}
	switch {
	case s.Left == spread.NoPage && s.Right != spread.NoPage:
		return -pageWidth / 2
	case s.Right == spread.NoPage && s.Left != spread.NoPage:
		return pageWidth / 2
	default:
		return 0
	}
}
