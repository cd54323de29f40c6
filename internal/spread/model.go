package spread

import (
	"errors"
	"fmt"
)

// PageID identifies one physical page slot of the booklet.
// The empty PageID means "no page on this side".
type PageID string

// NoPage marks an empty side of a spread.
const NoPage PageID = ""

// Reference page slots, in reading order.
const (
	FrontCover PageID = "front-cover"
	Page1      PageID = "page1"
	Page2      PageID = "page2"
	Page3      PageID = "page3"
	Page4      PageID = "page4"
	Page5      PageID = "page5"
	Page6      PageID = "page6"
	BackCover  PageID = "back-cover"
)

var (
	ErrIndexOutOfRange = errors.New("spread index out of range")
	ErrNoSpreads       = errors.New("at least two spreads are required")
	ErrEmptySpread     = errors.New("spread has no pages")
	ErrInteriorGap     = errors.New("only the first and last spreads may have an empty side")
	ErrDuplicatePage   = errors.New("page appears in more than one spread")
	ErrUnpairedPage    = errors.New("page has no leaf to be printed on")
)

// Spread is the pair of pages visible together at one navigation position.
type Spread struct {
	Index int    `json:"index"`
	Left  PageID `json:"left,omitempty"`
	Right PageID `json:"right,omitempty"`
	Label string `json:"label"`
}

// Pages returns the non-empty page ids of the spread, left first.
func (s Spread) Pages() []PageID {
	pages := make([]PageID, 0, 2)
	if s.Left != NoPage {
		pages = append(pages, s.Left)
	}
	if s.Right != NoPage {
		pages = append(pages, s.Right)
	}
	return pages
}

// Leaf pairs two pages printed back to back on one sheet.
// Front is visible while the leaf is closed, Back once it has been turned.
type Leaf struct {
	Index int    `json:"index"`
	Front PageID `json:"front"`
	Back  PageID `json:"back"`
}

// Model is the immutable sequence of spreads and the leaf structure derived from it.
type Model struct {
	spreads []Spread
	leaves  []Leaf
	pages   []PageID
}

// Reference returns the eight page booklet: front cover alone, three interior spreads, back cover alone.
func Reference() *Model {
	m, err := New([]Spread{
		{Right: FrontCover, Label: "Front Cover"},
		{Left: Page1, Right: Page2, Label: "Pages 1-2"},
		{Left: Page3, Right: Page4, Label: "Pages 3-4"},
		{Left: Page5, Right: Page6, Label: "Pages 5-6"},
		{Left: BackCover, Label: "Back Cover"},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// New validates the spread table and derives its leaves.
// Leaf i carries the right page of spread i on its front and the left page of
// spread i+1 on its back, so the first spread must not have a left page and the
// last spread must not have a right page.
func New(spreads []Spread) (*Model, error) {
	if len(spreads) < 2 {
		return nil, ErrNoSpreads
	}

	last := len(spreads) - 1
	seen := make(map[PageID]int)
	m := &Model{spreads: make([]Spread, len(spreads))}

	for i, s := range spreads {
		s.Index = i
		if s.Left == NoPage && s.Right == NoPage {
			return nil, fmt.Errorf("spread %d: %w", i, ErrEmptySpread)
		}
		if (s.Left == NoPage || s.Right == NoPage) && i != 0 && i != last {
			return nil, fmt.Errorf("spread %d: %w", i, ErrInteriorGap)
		}
		for _, id := range s.Pages() {
			if prev, dup := seen[id]; dup {
				return nil, fmt.Errorf("page %q in spreads %d and %d: %w", id, prev, i, ErrDuplicatePage)
			}
			seen[id] = i
			m.pages = append(m.pages, id)
		}
		m.spreads[i] = s
	}

	if spreads[0].Left != NoPage {
		return nil, fmt.Errorf("left page %q of the first spread: %w", spreads[0].Left, ErrUnpairedPage)
	}
	if spreads[last].Right != NoPage {
		return nil, fmt.Errorf("right page %q of the last spread: %w", spreads[last].Right, ErrUnpairedPage)
	}

	m.leaves = make([]Leaf, last)
	for i := range m.leaves {
		m.leaves[i] = Leaf{Index: i, Front: m.spreads[i].Right, Back: m.spreads[i+1].Left}
	}
	return m, nil
}

// Count returns the number of spreads.
func (m *Model) Count() int { return len(m.spreads) }

// LeafCount returns the number of leaves, always Count()-1.
func (m *Model) LeafCount() int { return len(m.leaves) }

// Spread returns the spread at index.
func (m *Model) Spread(index int) (Spread, error) {
	if index < 0 || index >= len(m.spreads) {
		return Spread{}, fmt.Errorf("spread %d of %d: %w", index, len(m.spreads), ErrIndexOutOfRange)
	}
	return m.spreads[index], nil
}

// Spreads returns a copy of the spread table.
func (m *Model) Spreads() []Spread {
	out := make([]Spread, len(m.spreads))
	copy(out, m.spreads)
	return out
}

// Leaves returns a copy of the leaf table.
func (m *Model) Leaves() []Leaf {
	out := make([]Leaf, len(m.leaves))
	copy(out, m.leaves)
	return out
}

// PageIDs returns every page id in reading order.
func (m *Model) PageIDs() []PageID {
	out := make([]PageID, len(m.pages))
	copy(out, m.pages)
	return out
}

// PagesVisibleAt returns the left and right page ids shown at index.
// Either may be NoPage at the ends of the booklet.
func (m *Model) PagesVisibleAt(index int) (PageID, PageID, error) {
	s, err := m.Spread(index)
	if err != nil {
		return NoPage, NoPage, err
	}
	return s.Left, s.Right, nil
}

// Label returns the display label of the spread at index, or "" when out of range.
func (m *Model) Label(index int) string {
	if index < 0 || index >= len(m.spreads) {
		return ""
	}
	return m.spreads[index].Label
}

// ClampIndex clamps index to [0, Count()-1]. It never wraps.
func (m *Model) ClampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(m.spreads) {
		return len(m.spreads) - 1
	}
	return index
}

// LeafIndexAffectedByTransition returns the leaf that turns when moving from one
// spread to an adjacent one. Any other delta, or an index outside the model,
// reports false.
func (m *Model) LeafIndexAffectedByTransition(from, to int) (int, bool) {
	if from < 0 || to < 0 || from >= len(m.spreads) || to >= len(m.spreads) {
		return 0, false
	}
	switch to - from {
	case 1:
		return from, true
	case -1:
		return to, true
	default:
		return 0, false
	}
}

// SpreadOf returns the index of the spread that shows page id.
func (m *Model) SpreadOf(id PageID) (int, bool) {
	for _, s := range m.spreads {
		if s.Left == id || s.Right == id {
			return s.Index, true
		}
	}
	return 0, false
}
