package viewer

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/flip"
	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
)

func newTestGenerator(opts Options) *Generator {
	m := spread.Reference()
	g := imposition.ReferenceGeometry()
	e := layout.New(m, layout.Options{PageWidth: g.PageWidth, Unit: g.Unit})
	return NewGenerator(e, styles.New(m, imposition.Reference(g)), opts)
}

func parseTestHTML(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

// visiblePages reads the page ids a reader sees on the resting book: the back
// of the topmost open leaf and the front of the topmost closed leaf.
func visiblePages(doc *goquery.Document) (left, right string) {
	openZ, closedZ := -1, -1
	doc.Find("." + layout.LeafClass).Each(func(_ int, s *goquery.Selection) {
		z := zOf(s)
		switch s.AttrOr(layout.StateAttr, "") {
		case "open":
			if z > openZ {
				openZ = z
				left = s.Find("." + layout.LeafBackClass + " > [id]").AttrOr("id", "")
			}
		case "closed":
			if z > closedZ {
				closedZ = z
				right = s.Find("." + layout.LeafFrontClass + " > [id]").AttrOr("id", "")
			}
		}
	})
	return left, right
}

func zOf(s *goquery.Selection) int {
	style := s.AttrOr("style", "")
	i := strings.Index(style, "z-index: ")
	if i < 0 {
		return -1
	}
	z, _ := strconv.Atoi(strings.TrimSpace(style[i+len("z-index: "):]))
	return z
}

func TestGenerate_BookAtSpread(t *testing.T) {
	gen := newTestGenerator(Options{})
	out, err := gen.Generate(document.New(document.Boilerplate(spread.Reference()), ""), 2)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	doc := parseTestHTML(t, out)

	c := doc.Find("." + layout.ContainerClass)
	if c.Length() != 1 {
		t.Fatalf("containers = %d, want 1", c.Length())
	}
	if c.AttrOr(layout.ModeAttr, "") != "book" || c.AttrOr(layout.SpreadAttr, "") != "2" {
		t.Fatalf("container mode/spread = %q/%q", c.AttrOr(layout.ModeAttr, ""), c.AttrOr(layout.SpreadAttr, ""))
	}

	wantStates := []string{"open", "open", "closed", "closed"}
	wantZ := []int{1, 2, 6, 5}
	leaves := doc.Find("." + layout.LeafClass)
	if leaves.Length() != len(wantStates) {
		t.Fatalf("leaves = %d, want %d", leaves.Length(), len(wantStates))
	}
	leaves.Each(func(i int, s *goquery.Selection) {
		if got := s.AttrOr(layout.StateAttr, ""); got != wantStates[i] {
			t.Errorf("leaf %d state = %q, want %q", i, got, wantStates[i])
		}
		if got := zOf(s); got != wantZ[i] {
			t.Errorf("leaf %d z = %d, want %d", i, got, wantZ[i])
		}
	})

	if l, r := visiblePages(doc); l != "page3" || r != "page4" {
		t.Fatalf("visible pages = %s/%s, want page3/page4", l, r)
	}
	if got := doc.Find("#" + IndicatorID).Text(); got != "Pages 3-4" {
		t.Fatalf("indicator = %q, want Pages 3-4", got)
	}
	if _, ok := doc.Find("#" + PrevID).Attr("disabled"); ok {
		t.Fatal("prev disabled in the middle of the book")
	}
	if doc.Find("style#"+styles.StyleID).Length() != 1 {
		t.Fatal("viewer stylesheet missing")
	}
	if !strings.Contains(doc.Find("script:not([type])").Text(), "ZineRuntime") {
		t.Fatal("runtime script missing")
	}
	if strings.Contains(out, "<script src=") {
		t.Fatal("export references an external script")
	}
}

func TestGenerate_EmbeddedData(t *testing.T) {
	gen := newTestGenerator(Options{CurveSamples: 10, Margin: 12})
	out, err := gen.Generate(document.New(document.Boilerplate(spread.Reference()), ""), 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	data, err := ReadData(parseTestHTML(t, out))
	if err != nil {
		t.Fatalf("ReadData() error = %v", err)
	}

	m := spread.Reference()
	if len(data.Spreads) != m.Count() || len(data.Frames) != m.Count() {
		t.Fatalf("spreads/frames = %d/%d, want %d", len(data.Spreads), len(data.Frames), m.Count())
	}
	for i, f := range data.Frames {
		if want := flip.StaticFrame(m, i, 2.75); !reflect.DeepEqual(f, want) {
			t.Fatalf("frame %d = %+v, want %+v", i, f, want)
		}
	}
	if len(data.Plans) != 2*m.LeafCount() {
		t.Fatalf("plans = %d, want %d", len(data.Plans), 2*m.LeafCount())
	}
	if len(data.Curve) != 11 || data.Curve[0] != 0 || data.Curve[10] != 1 {
		t.Fatalf("curve = %v", data.Curve)
	}
	if data.DurationMs != 600 || data.Margin != 12 || data.NavHeight != styles.DefaultNavHeight || data.Unit != "in" || data.PageWidth != 2.75 {
		t.Fatalf("data = %+v", data)
	}
}

func TestGenerate_NavAtEnds(t *testing.T) {
	gen := newTestGenerator(Options{})
	src := document.Boilerplate(spread.Reference())

	tests := []struct {
		index        int
		label        string
		prevDisabled bool
		nextDisabled bool
	}{
		{0, "Front Cover", true, false},
		{-3, "Front Cover", true, false},
		{4, "Back Cover", false, true},
		{99, "Back Cover", false, true},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.index), func(t *testing.T) {
			out, err := gen.Generate(document.New(src, ""), tt.index)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			doc := parseTestHTML(t, out)
			if got := doc.Find("#" + IndicatorID).Text(); got != tt.label {
				t.Fatalf("indicator = %q, want %q", got, tt.label)
			}
			if _, ok := doc.Find("#" + PrevID).Attr("disabled"); ok != tt.prevDisabled {
				t.Fatalf("prev disabled = %v, want %v", ok, tt.prevDisabled)
			}
			if _, ok := doc.Find("#" + NextID).Attr("disabled"); ok != tt.nextDisabled {
				t.Fatalf("next disabled = %v, want %v", ok, tt.nextDisabled)
			}
		})
	}
}

func TestGenerate_ReExportIsStable(t *testing.T) {
	gen := newTestGenerator(Options{})
	first, err := gen.Generate(document.New(document.Boilerplate(spread.Reference()), ""), 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := gen.Generate(document.New(first, ""), 1)
	if err != nil {
		t.Fatalf("Generate() of an export error = %v", err)
	}
	if first != second {
		t.Fatal("exporting an export changed it")
	}
	doc := parseTestHTML(t, second)
	for sel, want := range map[string]int{
		"." + layout.ContainerClass: 1,
		"." + styles.NavClass:       1,
		"script#" + DataID:          1,
		"style#" + styles.StyleID:   1,
	} {
		if n := doc.Find(sel).Length(); n != want {
			t.Fatalf("%s = %d, want %d", sel, n, want)
		}
	}
}

func TestGenerate_AuthoredMarkupKept(t *testing.T) {
	src := `<!DOCTYPE html><html><head><title>Mine</title><style>.page{color:red}</style></head><body>
<div class="page" id="front-cover" contenteditable="true"><h1>Hello</h1></div>
<div class="page" id="page1">one</div>
</body></html>`
	gen := newTestGenerator(Options{})
	out, err := gen.Generate(document.New(src, ""), 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	doc := parseTestHTML(t, out)
	if document.Title(doc) != "Mine" {
		t.Fatalf("title = %q", document.Title(doc))
	}
	if v, _ := doc.Find("body > #front-cover").Attr("contenteditable"); v != "true" {
		t.Fatalf("front cover contenteditable = %q, want the authored value", v)
	}
	if doc.Find("body > #front-cover h1").Text() != "Hello" {
		t.Fatal("authored page no longer in body")
	}
	if doc.Find("."+layout.LeafFrontClass+" #front-cover").Length() != 1 {
		t.Fatal("front cover not cloned onto leaf 0")
	}
	// Missing pages leave their faces empty.
	if n := doc.Find("." + layout.LeafBackClass).Eq(1).Children().Length(); n != 0 {
		t.Fatalf("leaf 1 back children = %d, want 0", n)
	}
}

func TestPipeline_Export(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "zine.html")
	if err := os.WriteFile(input, []byte(document.Boilerplate(spread.Reference())), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p := NewPipeline(newTestGenerator(Options{}), ExportOptions{InputPath: input, Spread: 3})
	if err := p.Export(); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "zine.viewer.html"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	doc := parseTestHTML(t, string(data))
	if got := doc.Find("#" + IndicatorID).Text(); got != "Pages 5-6" {
		t.Fatalf("indicator = %q, want Pages 5-6", got)
	}
}

func TestPipeline_Export_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(newTestGenerator(Options{}), ExportOptions{
		InputPath:  filepath.Join(dir, "missing.html"),
		OutputPath: filepath.Join(dir, "out.html"),
	})
	if err := p.Export(); err == nil {
		t.Fatal("Export() of a missing file succeeded")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.html")); !os.IsNotExist(err) {
		t.Fatal("failed export left an output file")
	}
}

func TestDefaultOutputPath(t *testing.T) {
	if got := DefaultOutputPath("a/b/zine.html"); got != "a/b/zine.viewer.html" {
		t.Fatalf("DefaultOutputPath() = %q", got)
	}
	if got := DefaultOutputPath("zine"); got != "zine.viewer.html" {
		t.Fatalf("DefaultOutputPath() = %q", got)
	}
}
