package layout

import (
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markup vocabulary shared by the stylesheets and the surface runtimes.
const (
	ContainerClass = "zine-spread-container"
	BookClass      = "zine-book"
	LeafClass      = "zine-leaf"
	LeafFrontClass = "zine-leaf-front"
	LeafBackClass  = "zine-leaf-back"
	EmptyClass     = "zine-empty"

	LeafIndexAttr = "data-leaf-index"
	StateAttr     = "data-state"
	SpreadAttr    = "data-spread"
	ModeAttr      = "data-mode"
)

// slotPrefix marks where a page was taken from in flat mode.
const slotPrefix = "zine-slot:"

func newDiv(class string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	n.Attr = append([]html.Attribute{{Key: "class", Val: class}}, attrs...)
	return n
}

func attr(key, val string) html.Attribute { return html.Attribute{Key: key, Val: val} }

func slotMarker(id string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: slotPrefix + id}
}

// formatNumber renders CSS numbers without exponent or trailing zeros.
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
