package flip

import "github.com/yuanying/zinespread/internal/spread"

// LeafFrame is the presentation of one leaf at one instant.
type LeafFrame struct {
	Index    int       `json:"index"`
	State    LeafState `json:"state"`
	Rotation float64   `json:"rotation"`
	Z        int       `json:"z"`
}

// Frame is everything a surface needs to draw the book at one instant.
// Spread is the navigation position (already the target while a leaf is
// turning); Label, AtStart and AtEnd describe the last committed spread and
// only change when a turn completes.
type Frame struct {
	Spread    int         `json:"spread"`
	Label     string      `json:"label"`
	Leaves    []LeafFrame `json:"leaves"`
	Shift     float64     `json:"shift"`
	Progress  float64     `json:"progress"`
	Animating bool        `json:"animating"`
	AtStart   bool        `json:"atStart"`
	AtEnd     bool        `json:"atEnd"`
}

// StaticFrame is the committed frame of a book resting at index.
func StaticFrame(m *spread.Model, index int, pageWidth float64) Frame {
	index = m.ClampIndex(index)
	states := CommittedStates(index, m.LeafCount())
	f := Frame{
		Spread:   index,
		Label:    m.Label(index),
		Leaves:   make([]LeafFrame, len(states)),
		Shift:    Shift(m, index, pageWidth),
		Progress: 1,
		AtStart:  index == 0,
		AtEnd:    index == m.Count()-1,
	}
	for i, st := range states {
		f.Leaves[i] = LeafFrame{Index: i, State: st, Rotation: Rotation(st), Z: ZIndex(i, len(states), st)}
	}
	return f
}

// States returns the leaf states carried by the frame.
func (f Frame) States() []LeafState {
	out := make([]LeafState, len(f.Leaves))
	for i, l := range f.Leaves {
		out[i] = l.State
	}
	return out
}

// FlippingLeaves counts leaves in the Flipping state.
func (f Frame) FlippingLeaves() int {
	n := 0
	for _, l := range f.Leaves {
		if l.State == Flipping {
			n++
		}
	}
	return n
}
