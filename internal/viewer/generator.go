// Package viewer generates the standalone export of a zine: one HTML file
// holding the cleaned document, the book arrangement, the stylesheets, the
// precomputed turn data and the runtime that plays it back.
package viewer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/flip"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
)

//go:embed assets/runtime.js
var runtimeJS string

// Runtime returns the script shared by exports and live surfaces. It defines
// window.ZineRuntime and starts the standalone viewer when the page carries
// viewer data.
func Runtime() string { return runtimeJS }

// Element ids of the export chrome.
const (
	DataID      = "zine-data"
	PrevID      = "zine-prev"
	NextID      = "zine-next"
	IndicatorID = "zine-indicator"
)

const (
	defaultCurveSamples = 60
	defaultMargin       = 20
)

// Options configures a Generator.
type Options struct {
	NavHeight    int
	Margin       float64
	CurveSamples int
	Duration     time.Duration
	// Images inlines local images when set.
	Images *ImageInliner
	Logger *slog.Logger
}

// Data is the turn data an export carries. Every frame and plan is computed
// by package flip, so the export draws exactly what a live surface draws.
type Data struct {
	Spreads    []spread.Spread `json:"spreads"`
	Frames     []flip.Frame    `json:"frames"`
	Plans      []flip.Plan     `json:"plans"`
	Curve      []float64       `json:"curve"`
	DurationMs int64           `json:"durationMs"`
	Margin     float64         `json:"margin"`
	NavHeight  int             `json:"navHeight"`
	Unit       string          `json:"unit"`
	PageWidth  float64         `json:"pageWidth"`
}

// Generator produces standalone exports.
type Generator struct {
	engine *layout.Engine
	styles *styles.Set
	opts   Options
}

// NewGenerator creates a generator arranging pages with e and styling them with s.
func NewGenerator(e *layout.Engine, s *styles.Set, opts Options) *Generator {
	if opts.NavHeight <= 0 {
		opts.NavHeight = styles.DefaultNavHeight
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	if opts.CurveSamples <= 0 {
		opts.CurveSamples = defaultCurveSamples
	}
	if opts.Duration <= 0 {
		opts.Duration = flip.DefaultDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{engine: e, styles: s, opts: opts}
}

// Data computes the turn data for the generator's model.
func (g *Generator) Data() Data {
	m := g.engine.Model()
	pw := g.engine.PageWidth()
	frames := make([]flip.Frame, m.Count())
	for i := range frames {
		frames[i] = flip.StaticFrame(m, i, pw)
	}
	return Data{
		Spreads:    m.Spreads(),
		Frames:     frames,
		Plans:      flip.Plans(m, pw),
		Curve:      flip.Curve(g.opts.CurveSamples),
		DurationMs: g.opts.Duration.Milliseconds(),
		Margin:     g.opts.Margin,
		NavHeight:  g.opts.NavHeight,
		Unit:       g.engine.Unit(),
		PageWidth:  pw,
	}
}

// Generate renders the export of d resting at spread index.
func (g *Generator) Generate(d *document.Document, index int) (string, error) {
	doc, err := d.Parse()
	if err != nil {
		return "", err
	}
	document.Clean(doc, g.engine)

	if g.opts.Images != nil {
		g.opts.Images.Inline(doc, d.Dir())
	}

	m := g.engine.Model()
	index = m.ClampIndex(index)
	if _, err := g.engine.Build(doc, layout.Book, index); err != nil {
		return "", fmt.Errorf("failed to build book: %w", err)
	}
	if r := document.Pages(doc, m); len(r.Missing) > 0 {
		g.opts.Logger.Warn("export is missing pages", "pages", r.Missing)
	}

	document.InjectStyle(doc, styles.StyleID, g.styles.Viewer(g.opts.NavHeight))
	document.AppendToBody(doc, g.nav(flip.StaticFrame(m, index, g.engine.PageWidth())))

	data, err := json.Marshal(g.Data())
	if err != nil {
		return "", fmt.Errorf("failed to encode viewer data: %w", err)
	}
	document.AppendToBody(doc, fmt.Sprintf(`<script type="application/json" id="%s" %s="data">%s</script>`,
		DataID, document.SurfaceAttr, data))
	document.AppendToBody(doc, fmt.Sprintf(`<script %s="runtime">%s</script>`, document.SurfaceAttr, runtimeJS))

	out, err := document.Render(doc)
	if err != nil {
		return "", err
	}
	g.opts.Logger.Debug("export generated", "spread", index, "bytes", len(out))
	return out, nil
}

// nav renders the navigation bar as it looks at frame f before the runtime starts.
func (g *Generator) nav(f flip.Frame) string {
	disabled := func(b bool) string {
		if b {
			return " disabled"
		}
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" %s="nav">`, styles.NavClass, document.SurfaceAttr)
	fmt.Fprintf(&b, `<button id="%s" title="Previous spread"%s>&larr;</button>`, PrevID, disabled(f.AtStart))
	fmt.Fprintf(&b, `<span id="%s">%s</span>`, IndicatorID, html.EscapeString(f.Label))
	fmt.Fprintf(&b, `<button id="%s" title="Next spread"%s>&rarr;</button>`, NextID, disabled(f.AtEnd))
	b.WriteString(`</div>`)
	return b.String()
}

// ReadData extracts the turn data embedded in an export.
func ReadData(doc *goquery.Document) (Data, error) {
	var data Data
	raw := doc.Find("script#" + DataID).First()
	if raw.Length() == 0 {
		return data, fmt.Errorf("no %s block in document", DataID)
	}
	if err := json.Unmarshal([]byte(raw.Text()), &data); err != nil {
		return data, fmt.Errorf("failed to decode viewer data: %w", err)
	}
	return data, nil
}
