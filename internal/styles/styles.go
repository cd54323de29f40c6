// Package styles generates the stylesheets injected into zine documents.
// All sizes come from one page geometry so the screen arrangement, the book
// and the printed sheet always agree.
package styles

import (
	"fmt"
	"strings"

	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
)

// Class names of the surface chrome. The layout vocabulary lives in package layout.
const (
	NavClass       = "zine-nav"
	SpreadNavClass = "spread-nav"
	ToggleClass    = "iframe-fullscreen-toggle"
	ToggleID       = "fullscreenToggle"
	PageClass      = "page"
	StyleID        = "zine-spread-css"

	// DefaultNavHeight is the height of the export navigation bar in pixels.
	DefaultNavHeight = 50
)

// Passthrough lists the wrappers whose boxes are dissolved on the printed
// sheet, so the pages inside them land in the imposition grid.
var Passthrough = []string{
	"." + NavClass,
	"." + layout.EmptyClass,
	"." + SpreadNavClass,
	"." + ToggleClass,
	"." + layout.ContainerClass,
}

// Set renders stylesheets for one model and sheet.
type Set struct {
	model *spread.Model
	sheet imposition.Sheet
}

// New returns a stylesheet set.
func New(m *spread.Model, sheet imposition.Sheet) *Set {
	return &Set{model: m, sheet: sheet}
}

// Geometry returns the page geometry the set renders.
func (s *Set) Geometry() imposition.Geometry { return s.sheet.Geometry }

func (s *Set) len(v float64) string { return s.sheet.Geometry.Len(v) }

func selectors(ids []spread.PageID) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != spread.NoPage {
			out = append(out, "#"+string(id))
		}
	}
	return strings.Join(out, ", ")
}

// sides splits the pages into those shown on the right of a spread, whose
// spine is on their left edge, and those shown on the left.
func (s *Set) sides() (right, left []spread.PageID) {
	for _, sp := range s.model.Spreads() {
		if sp.Right != spread.NoPage {
			right = append(right, sp.Right)
		}
		if sp.Left != spread.NoPage {
			left = append(left, sp.Left)
		}
	}
	return right, left
}

// Page styles the pages themselves and the empty placeholder.
func (s *Set) Page() string {
	g := s.sheet.Geometry
	var b strings.Builder
	fmt.Fprintf(&b, "%s {\n", selectors(s.model.PageIDs()))
	fmt.Fprintf(&b, "\tdisplay: none;\n\twidth: %s;\n\theight: %s;\n", s.len(g.PageWidth), s.len(g.PageHeight))
	fmt.Fprintf(&b, "\tflex-shrink: 0;\n\tpadding: %s;\n\toverflow: hidden;\n\toverflow-wrap: break-word;\n}\n", s.len(g.Padding))
	fmt.Fprintf(&b, ".%s { background: white; }\n", PageClass)
	fmt.Fprintf(&b, ".%s { display: flex; transform-origin: center center; }\n", layout.ContainerClass)

	right, left := s.sides()
	if len(right) > 0 {
		fmt.Fprintf(&b, "%s { box-shadow: inset 4px 0 1.3px -3px rgba(0, 0, 0, 0.09), inset 8px 0 6px -6px rgba(0, 0, 0, 0.15); }\n", selectors(right))
	}
	if len(left) > 0 {
		fmt.Fprintf(&b, "%s { box-shadow: inset -4px 0 1.5px -3px rgba(0, 0, 0, 0.09), inset -8px 0 6px -6px rgba(0, 0, 0, 0.15); }\n", selectors(left))
	}

	fmt.Fprintf(&b, ".%s {\n\twidth: %s;\n\theight: %s;\n\tflex-shrink: 0;\n\tborder: 1px dashed #666;\n}\n",
		layout.EmptyClass, s.len(g.PageWidth), s.len(g.PageHeight))
	fmt.Fprintf(&b, ".%s:first-child { border-right: none; }\n", layout.EmptyClass)
	fmt.Fprintf(&b, ".%s:last-child { border-left: none; }\n", layout.EmptyClass)
	return b.String()
}

// Flip styles the book: leaves hinge on the spine at the centre of the book
// and each face hides its back.
func (s *Set) Flip() string {
	g := s.sheet.Geometry
	var b strings.Builder
	fmt.Fprintf(&b, ".%s {\n\tposition: relative;\n\twidth: %s;\n\theight: %s;\n\tperspective: 2500px;\n\ttransform-style: preserve-3d;\n}\n",
		layout.BookClass, s.len(2*g.PageWidth), s.len(g.PageHeight))
	fmt.Fprintf(&b, ".%s {\n\tposition: absolute;\n\ttop: 0;\n\tleft: 50%%;\n\twidth: %s;\n\theight: %s;\n\ttransform-origin: left center;\n\ttransform-style: preserve-3d;\n}\n",
		layout.LeafClass, s.len(g.PageWidth), s.len(g.PageHeight))
	fmt.Fprintf(&b, ".%s, .%s {\n\tposition: absolute;\n\ttop: 0;\n\tleft: 0;\n\twidth: 100%%;\n\theight: 100%%;\n\tbackface-visibility: hidden;\n\t-webkit-backface-visibility: hidden;\n}\n",
		layout.LeafFrontClass, layout.LeafBackClass)
	fmt.Fprintf(&b, ".%s { transform: rotateY(180deg); }\n", layout.LeafBackClass)
	fmt.Fprintf(&b, ".%s > *, .%s > * { display: block !important; }\n", layout.LeafFrontClass, layout.LeafBackClass)
	return b.String()
}

func screenReset(b *strings.Builder, keep ...string) {
	b.WriteString("* { margin: 0; padding: 0; box-sizing: border-box; }\n")
	b.WriteString("@media screen {\n")
	b.WriteString("html, body { height: 100% !important; overflow: hidden !important; }\n")
	b.WriteString("body { display: flex !important; justify-content: center !important; align-items: center !important; }\n")
	not := ""
	for _, k := range keep {
		not += ":not(" + k + ")"
	}
	fmt.Fprintf(b, "body > *%s { display: none !important; }\n", not)
}

// FlatSpread shows only the pages of spread index, side by side.
func (s *Set) FlatSpread(index int) string {
	g := s.sheet.Geometry
	left, right, err := s.model.PagesVisibleAt(s.model.ClampIndex(index))
	if err != nil {
		left, right = spread.NoPage, spread.NoPage
	}

	var b strings.Builder
	screenReset(&b, "."+layout.ContainerClass, "."+ToggleClass)
	b.WriteString(s.Page())
	fmt.Fprintf(&b, ".%s { display: flex !important; position: relative; }\n", layout.ContainerClass)
	fmt.Fprintf(&b, "%s {\n\tdisplay: none !important;\n\twidth: %s !important;\n\theight: %s !important;\n}\n",
		selectors(s.model.PageIDs()), s.len(g.PageWidth), s.len(g.PageHeight))
	if visible := selectors([]spread.PageID{left, right}); visible != "" {
		fmt.Fprintf(&b, "%s { display: block !important; }\n", visible)
	}
	fmt.Fprintf(&b, ".%s {\n\tdisplay: block !important;\n\twidth: %s !important;\n\theight: %s !important;\n}\n",
		layout.EmptyClass, s.len(g.PageWidth), s.len(g.PageHeight))
	b.WriteString("}\n")
	s.printBlock(&b)
	return b.String()
}

// FlipMode shows the book. Every page clone is displayed; the leaves decide what is visible.
func (s *Set) FlipMode() string {
	var b strings.Builder
	screenReset(&b, "."+layout.ContainerClass, "."+ToggleClass)
	b.WriteString(s.Page())
	b.WriteString(s.Flip())
	fmt.Fprintf(&b, ".%s { display: flex !important; position: relative; }\n", layout.ContainerClass)
	fmt.Fprintf(&b, ".%s { display: block !important; }\n", PageClass)
	b.WriteString("}\n")
	s.printBlock(&b)
	return b.String()
}

// ForMode returns the stylesheet of a layout mode at spread index.
func (s *Set) ForMode(mode layout.Mode, index int) string {
	if mode == layout.Book {
		return s.FlipMode()
	}
	return s.FlatSpread(index)
}

// Print returns the imposition rules alone.
func (s *Set) Print() string {
	return s.sheet.CSS(Passthrough...)
}

func (s *Set) printBlock(b *strings.Builder) {
	b.WriteString("@media print {\n")
	b.WriteString(s.Print())
	// The book holds clones; the authored pages are the ones imposed.
	fmt.Fprintf(b, ".%s { display: none !important; }\n", layout.BookClass)
	b.WriteString("}\n")
}

// Toggle styles the fullscreen button a live surface carries.
func Toggle() string {
	return "* { overscroll-behavior: none !important; }\n" +
		"." + ToggleClass + " { position: fixed; top: 5px; right: 5px; z-index: 10000; background: rgba(0, 0, 0, 0.2); color: white; border: none; border-radius: 4px; width: 32px; height: 32px; display: flex; align-items: center; justify-content: center; cursor: pointer; transition: background-color 0.2s; box-shadow: 0 2px 2px rgba(0, 0, 0, 0.2); -webkit-tap-highlight-color: transparent; outline: none; user-select: none; }\n" +
		"." + ToggleClass + " svg { filter: drop-shadow(0 1px 1px rgba(0, 0, 0, 0.3)); opacity: 0.8; transition: opacity 0.2s; }\n" +
		"@media (hover: hover) and (pointer: fine) { ." + ToggleClass + ":hover { background: rgba(0, 0, 0, 0.35); } ." + ToggleClass + ":hover svg { opacity: 1; } }\n"
}

// Viewer is the stylesheet of a standalone export: the book over a dark
// backdrop with a navigation bar of navHeight pixels at the bottom.
func (s *Set) Viewer(navHeight int) string {
	if navHeight <= 0 {
		navHeight = DefaultNavHeight
	}
	var b strings.Builder
	b.WriteString("* { margin: 0; padding: 0; box-sizing: border-box; }\n")
	b.WriteString("@media screen {\n")
	b.WriteString("html, body { height: 100% !important; overflow: hidden !important; }\n")
	fmt.Fprintf(&b, "body {\n\tbackground: linear-gradient(to top, #2a2a2a, #3a3a3a) !important;\n\tdisplay: flex !important;\n\tjustify-content: center !important;\n\talign-items: center !important;\n\tpadding-bottom: %dpx !important;\n}\n", navHeight)
	fmt.Fprintf(&b, "body > *:not(.%s):not(.%s) { display: none !important; }\n", layout.ContainerClass, NavClass)
	b.WriteString(s.Page())
	b.WriteString(s.Flip())
	fmt.Fprintf(&b, ".%s { display: flex !important; position: relative; }\n", layout.ContainerClass)
	fmt.Fprintf(&b, ".%s { position: fixed; bottom: 0; left: 0; right: 0; height: %dpx; display: flex; justify-content: center; align-items: center; gap: 12px; background: transparent; }\n", NavClass, navHeight)
	fmt.Fprintf(&b, ".%s button { background: rgba(255,255,255,0.15); color: white; border: none; border-radius: 4px; width: 36px; height: 32px; font-size: 18px; cursor: pointer; }\n", NavClass)
	fmt.Fprintf(&b, ".%s button:hover:not(:disabled) { background: rgba(255,255,255,0.25); }\n", NavClass)
	fmt.Fprintf(&b, ".%s button:disabled { opacity: 0.3; cursor: default; }\n", NavClass)
	fmt.Fprintf(&b, ".%s span { color: white; font-size: 14px; min-width: 100px; text-align: center; font-family: monospace; }\n", NavClass)
	b.WriteString("}\n")
	s.printBlock(&b)
	fmt.Fprintf(&b, "@media screen and (max-height: 200px) { .%s, .%s { display: none !important; } }\n", layout.ContainerClass, NavClass)
	return b.String()
}
