// Package imposition places the booklet pages on one printed sheet so that
// folding and a single cut produce the reading order.
package imposition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuanying/zinespread/internal/spread"
)

var ErrUnplacedPage = errors.New("page has no cell on the sheet")

// Geometry is the physical size of one page.
type Geometry struct {
	PageWidth  float64 `yaml:"page_width" json:"pageWidth"`
	PageHeight float64 `yaml:"page_height" json:"pageHeight"`
	Padding    float64 `yaml:"padding" json:"padding"`
	Unit       string  `yaml:"unit" json:"unit"`
}

// ReferenceGeometry is a quarter of a US Letter sheet folded into eighths.
func ReferenceGeometry() Geometry {
	return Geometry{PageWidth: 2.75, PageHeight: 4.25, Padding: 0.2, Unit: "in"}
}

// Len formats a length in the geometry's unit.
func (g Geometry) Len(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + g.Unit
}

// Validate rejects non-positive sizes and a missing unit.
func (g Geometry) Validate() error {
	switch {
	case g.PageWidth <= 0:
		return fmt.Errorf("page width must be positive, got %v", g.PageWidth)
	case g.PageHeight <= 0:
		return fmt.Errorf("page height must be positive, got %v", g.PageHeight)
	case g.Padding < 0 || 2*g.Padding >= g.PageWidth:
		return fmt.Errorf("padding %v does not fit the page", g.Padding)
	case g.Unit == "":
		return errors.New("geometry unit is required")
	}
	return nil
}

// Cell is the grid slot of one page. Rows and columns are 1-based.
type Cell struct {
	Page    spread.PageID `json:"page"`
	Row     int           `json:"row"`
	Column  int           `json:"column"`
	Rotated bool          `json:"rotated"`
}

// Sheet is the unrotated print grid: Columns pages across, Rows pages down.
// It is printed turned by 90 degrees onto a portrait sheet.
type Sheet struct {
	Geometry Geometry
	Rows     int
	Columns  int
	Cells    []Cell
}

// Reference returns the eight page mini zine imposition. The top row is
// printed upside down so it reads correctly once the sheet is folded.
func Reference(g Geometry) Sheet {
	return Sheet{
		Geometry: g,
		Rows:     2,
		Columns:  4,
		Cells: []Cell{
			{Page: spread.FrontCover, Row: 2, Column: 2},
			{Page: spread.Page1, Row: 2, Column: 3},
			{Page: spread.Page2, Row: 2, Column: 4},
			{Page: spread.Page3, Row: 1, Column: 4, Rotated: true},
			{Page: spread.Page4, Row: 1, Column: 3, Rotated: true},
			{Page: spread.Page5, Row: 1, Column: 2, Rotated: true},
			{Page: spread.Page6, Row: 1, Column: 1, Rotated: true},
			{Page: spread.BackCover, Row: 2, Column: 1},
		},
	}
}

// Width is the width of the unrotated grid.
func (s Sheet) Width() float64 { return float64(s.Columns) * s.Geometry.PageWidth }

// Height is the height of the unrotated grid.
func (s Sheet) Height() float64 { return float64(s.Rows) * s.Geometry.PageHeight }

// Cell returns the slot of a page.
func (s Sheet) Cell(id spread.PageID) (Cell, bool) {
	for _, c := range s.Cells {
		if c.Page == id {
			return c, true
		}
	}
	return Cell{}, false
}

// Validate checks that every page of m has a cell.
func (s Sheet) Validate(m *spread.Model) error {
	for _, id := range m.PageIDs() {
		if _, ok := s.Cell(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnplacedPage, id)
		}
	}
	return nil
}

func (s Sheet) pageSelector() string {
	ids := make([]string, len(s.Cells))
	for i, c := range s.Cells {
		ids[i] = "#" + string(c.Page)
	}
	return strings.Join(ids, ", ")
}

// CSS returns the print rules that lay the pages out on the sheet. Elements
// matching passthrough have their boxes dissolved so pages nested inside them
// still become grid items.
func (s Sheet) CSS(passthrough ...string) string {
	g := s.Geometry
	var b strings.Builder

	fmt.Fprintf(&b, "@page { size: %s %s portrait; margin: 0; }\n", g.Len(s.Height()), g.Len(s.Width()))
	fmt.Fprintf(&b, "html, body { width: %s; height: %s; }\n", g.Len(s.Height()), g.Len(s.Width()))
	b.WriteString("body {\n")
	b.WriteString("\tdisplay: grid !important;\n")
	fmt.Fprintf(&b, "\tgrid-template-columns: repeat(%d, %s);\n", s.Columns, g.Len(g.PageWidth))
	fmt.Fprintf(&b, "\tgrid-template-rows: repeat(%d, %s);\n", s.Rows, g.Len(g.PageHeight))
	b.WriteString("\ttransform: rotate(90deg);\n")
	b.WriteString("\ttransform-origin: center center;\n")
	b.WriteString("\tposition: absolute;\n")
	fmt.Fprintf(&b, "\ttop: calc(50%% - %s);\n", g.Len(s.Height()/2))
	fmt.Fprintf(&b, "\tleft: calc(50%% - %s);\n", g.Len(s.Width()/2))
	fmt.Fprintf(&b, "\twidth: %s;\n", g.Len(s.Width()))
	fmt.Fprintf(&b, "\theight: %s;\n", g.Len(s.Height()))
	b.WriteString("}\n")

	fmt.Fprintf(&b, "%s {\n", s.pageSelector())
	b.WriteString("\tdisplay: block !important;\n")
	fmt.Fprintf(&b, "\twidth: %s !important;\n", g.Len(g.PageWidth))
	fmt.Fprintf(&b, "\theight: %s !important;\n", g.Len(g.PageHeight))
	fmt.Fprintf(&b, "\tpadding: %s;\n", g.Len(g.Padding))
	b.WriteString("\tbackground: white;\n\toverflow: hidden;\n\toverflow-wrap: break-word;\n")
	b.WriteString("\taspect-ratio: auto !important;\n\tbox-shadow: none !important;\n\ttransform: none;\n")
	b.WriteString("}\n")

	for _, c := range s.Cells {
		fmt.Fprintf(&b, "#%s { grid-row: %d; grid-column: %d;", c.Page, c.Row, c.Column)
		if c.Rotated {
			b.WriteString(" transform: rotate(180deg);")
		}
		b.WriteString(" }\n")
	}

	if len(passthrough) > 0 {
		fmt.Fprintf(&b, "%s { display: contents !important; }\n", strings.Join(passthrough, ", "))
	}
	b.WriteString("a { color: black; }\n")
	return b.String()
}
