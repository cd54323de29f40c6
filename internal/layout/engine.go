// Package layout arranges the pages of a zine document for one spread.
//
// The engine mutates a goquery document in place. Every Build starts with a
// Teardown, so rebuilding with the same arguments always yields the same
// markup and never leaks containers or duplicated pages.
package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/yuanying/zinespread/internal/flip"
	"github.com/yuanying/zinespread/internal/spread"
)

var (
	ErrNoBody   = errors.New("document has no body")
	ErrNotBuilt = errors.New("no spread container in document")
)

// Options configures an Engine.
type Options struct {
	// PageWidth is the page width in Unit, used for the book shift.
	PageWidth float64
	// Unit is the CSS length unit of PageWidth. Defaults to "in".
	Unit   string
	Logger *slog.Logger
}

// Engine builds spread arrangements for one spread model.
type Engine struct {
	model     *spread.Model
	pageWidth float64
	unit      string
	logger    *slog.Logger
}

// New creates an engine for m.
func New(m *spread.Model, opts Options) *Engine {
	if opts.Unit == "" {
		opts.Unit = "in"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{model: m, pageWidth: opts.PageWidth, unit: opts.Unit, logger: opts.Logger}
}

// Model returns the spread model the engine arranges.
func (e *Engine) Model() *spread.Model { return e.model }

// PageWidth returns the page width used for frames.
func (e *Engine) PageWidth() float64 { return e.pageWidth }

// Unit returns the CSS length unit of frame shifts.
func (e *Engine) Unit() string { return e.unit }

// Build replaces any previous arrangement with the arrangement of spread index
// in the given mode and returns the new container. The index is clamped.
func (e *Engine) Build(doc *goquery.Document, mode Mode, index int) (*goquery.Selection, error) {
	e.Teardown(doc)

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, ErrNoBody
	}
	index = e.model.ClampIndex(index)

	container := newDiv(ContainerClass,
		attr(ModeAttr, mode.String()),
		attr(SpreadAttr, strconv.Itoa(index)),
	)

	switch mode {
	case Flat:
		if err := e.buildFlat(doc, container, index); err != nil {
			return nil, err
		}
	case Book:
		e.buildBook(doc, container)
	default:
		return nil, fmt.Errorf("build spread %d: unsupported mode %v", index, mode)
	}

	body.AppendNodes(container)
	sel := doc.FindNodes(container)

	if mode == Book {
		if err := e.Apply(doc, flip.StaticFrame(e.model, index, e.pageWidth)); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("spread built", "mode", mode, "spread", index)
	return sel, nil
}

// buildFlat moves the pages of the spread into container, leaving a marker
// comment where each page was so Teardown can put it back.
func (e *Engine) buildFlat(doc *goquery.Document, container *html.Node, index int) error {
	left, right, err := e.model.PagesVisibleAt(index)
	if err != nil {
		return fmt.Errorf("build flat spread: %w", err)
	}
	for _, id := range []spread.PageID{left, right} {
		if id == spread.NoPage {
			container.AppendChild(newDiv(EmptyClass))
			continue
		}
		page := FindPage(doc, id)
		if page.Length() == 0 {
			e.logger.Debug("page missing, slot skipped", "page", id)
			continue
		}
		n := page.Get(0)
		n.Parent.InsertBefore(slotMarker(string(id)), n)
		n.Parent.RemoveChild(n)
		container.AppendChild(n)
	}
	return nil
}

// buildBook creates one leaf per sheet. Faces hold clones; originals stay in place.
func (e *Engine) buildBook(doc *goquery.Document, container *html.Node) {
	book := newDiv(BookClass)
	for _, leaf := range e.model.Leaves() {
		el := newDiv(LeafClass,
			attr(LeafIndexAttr, strconv.Itoa(leaf.Index)),
			attr(StateAttr, flip.Closed.String()),
		)
		el.AppendChild(e.face(doc, LeafFrontClass, leaf.Front))
		el.AppendChild(e.face(doc, LeafBackClass, leaf.Back))
		book.AppendChild(el)
	}
	container.AppendChild(book)
}

func (e *Engine) face(doc *goquery.Document, class string, id spread.PageID) *html.Node {
	n := newDiv(class)
	page := FindPage(doc, id)
	if page.Length() == 0 {
		e.logger.Debug("page missing, face left empty", "page", id)
		return n
	}
	n.AppendChild(page.Clone().Get(0))
	return n
}

// Teardown removes every spread container and moves flat-mode pages back to
// where they were taken from. It is a no-op on a document without containers.
func (e *Engine) Teardown(doc *goquery.Document) {
	containers := doc.Find("." + ContainerClass)

	var markers []*html.Node
	collectMarkers(doc.Get(0), &markers)
	for _, m := range markers {
		id := strings.TrimPrefix(m.Data, slotPrefix)
		moved := containers.Children().FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == id
		})
		if moved.Length() > 0 {
			n := moved.Get(0)
			n.Parent.RemoveChild(n)
			m.Parent.InsertBefore(n, m)
		}
		m.Parent.RemoveChild(m)
	}

	containers.Remove()
}

func collectMarkers(n *html.Node, out *[]*html.Node) {
	if n == nil {
		return
	}
	if n.Type == html.CommentNode && strings.HasPrefix(n.Data, slotPrefix) {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMarkers(c, out)
	}
}

// Apply writes a flip frame onto the arrangement: the container's spread, each
// leaf's state, rotation and stacking order, and the book shift. A flat
// arrangement only records the spread.
func (e *Engine) Apply(doc *goquery.Document, f flip.Frame) error {
	container := doc.Find("." + ContainerClass).First()
	if container.Length() == 0 {
		return ErrNotBuilt
	}
	container.SetAttr(SpreadAttr, strconv.Itoa(f.Spread))

	book := container.ChildrenFiltered("." + BookClass)
	if book.Length() == 0 {
		return nil
	}
	book.SetAttr("style", "transform: translateX("+formatNumber(f.Shift)+e.unit+")")

	leaves := book.ChildrenFiltered("." + LeafClass)
	for _, lf := range f.Leaves {
		el := leaves.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr(LeafIndexAttr, "") == strconv.Itoa(lf.Index)
		})
		if el.Length() == 0 {
			continue
		}
		el.SetAttr(StateAttr, lf.State.String())
		el.SetAttr("style", fmt.Sprintf("transform: rotateY(%sdeg); z-index: %d", formatNumber(lf.Rotation), lf.Z))
	}
	return nil
}

// ApplyScale sets the uniform zoom of the container.
func (e *Engine) ApplyScale(doc *goquery.Document, scale float64) error {
	container := doc.Find("." + ContainerClass).First()
	if container.Length() == 0 {
		return ErrNotBuilt
	}
	container.SetAttr("style", "zoom: "+formatNumber(scale))
	return nil
}

// FindPage returns the authored element for a page id, ignoring clones inside
// a spread container.
func FindPage(doc *goquery.Document, id spread.PageID) *goquery.Selection {
	if id == spread.NoPage {
		return doc.Find("body").Slice(0, 0)
	}
	return doc.Find("body [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr("id", "") != string(id) {
			return false
		}
		return s.Closest("."+ContainerClass).Length() == 0 || !inBook(s)
	}).First()
}

// inBook reports whether s sits inside a leaf face.
func inBook(s *goquery.Selection) bool {
	return s.Closest("."+LeafClass).Length() > 0
}
