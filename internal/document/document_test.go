package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
)

func parseTestHTML(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := New(s, "").Parse()
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

func TestBoilerplate(t *testing.T) {
	m := spread.Reference()
	doc := parseTestHTML(t, Boilerplate(m))

	r := Pages(doc, m)
	if len(r.Missing) != 0 || len(r.Present) != 8 {
		t.Fatalf("Pages() = %+v, want all 8 present", r)
	}
	if n := doc.Find("body > div.page").Length(); n != 8 {
		t.Fatalf("page divs = %d, want 8", n)
	}
	if doc.Find("body > div.page").First().AttrOr("id", "") != "front-cover" {
		t.Fatal("first page is not the front cover")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zine.html")
	if err := os.WriteFile(path, []byte("<html><head><title> My Zine </title></head><body></body></html>"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if d.Dir() != dir {
		t.Fatalf("Dir() = %q, want %q", d.Dir(), dir)
	}
	doc, err := d.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := Title(doc); got != "My Zine" {
		t.Fatalf("Title() = %q, want %q", got, "My Zine")
	}

	if _, err := Load(filepath.Join(dir, "missing.html")); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}

func TestParse_EmptySource(t *testing.T) {
	doc, err := New("   \n", "").Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Find("body").Length() != 1 {
		t.Fatal("empty source has no body")
	}
}

func TestInsertAfterHead(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"head", `<html><HEAD lang="en"><style>a{}</style></HEAD></html>`, `<html><HEAD lang="en"><X><style>a{}</style></HEAD></html>`},
		{"no head", `<html class="z"><body></body></html>`, `<html class="z"><X><body></body></html>`},
		{"fragment", `<div id="page1"></div>`, `<X><div id="page1"></div>`},
		{"header is not head", `<html><body><header>h</header></body></html>`, `<html><X><body><header>h</header></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsertAfterHead(tt.source, "<X>"); got != tt.want {
				t.Fatalf("InsertAfterHead() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInjectStyle_FirstInHeadAndReplaced(t *testing.T) {
	doc := parseTestHTML(t, `<html><head><style id="user">p{color:red}</style></head><body></body></html>`)
	InjectStyle(doc, styles.StyleID, "p{color:blue}")
	InjectStyle(doc, styles.StyleID, "p{color:green}</style>")

	injected := doc.Find("style#" + styles.StyleID)
	if injected.Length() != 1 {
		t.Fatalf("injected styles = %d, want 1", injected.Length())
	}
	if first := doc.Find("head").Children().First().AttrOr("id", ""); first != styles.StyleID {
		t.Fatalf("first head child = %q, want the injected style", first)
	}
	if !strings.Contains(injected.Text(), `p{color:green}<\/style>`) {
		t.Fatalf("injected text = %q", injected.Text())
	}
}

func TestClean(t *testing.T) {
	src := `<!DOCTYPE html><html><head><style>.page{}</style></head><body>
<div class="page" id="front-cover">cover</div>
<div class="page" id="page1">one</div>
<div class="page" id="page2">two</div>
<div class="page" id="page3">three</div>
<div class="page" id="page4">four</div>
<div class="page" id="page5">five</div>
<div class="page" id="page6">six</div>
<div class="page" id="back-cover">back</div>
</body></html>`
	doc := parseTestHTML(t, src)
	before, _ := Render(doc)

	e := layout.New(spread.Reference(), layout.Options{PageWidth: 2.75})
	if _, err := e.Build(doc, layout.Flat, 1); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	InjectStyle(doc, styles.StyleID, "body{}")
	AppendToBody(doc, `<button id="fullscreenToggle" class="iframe-fullscreen-toggle"></button>`)
	AppendToBody(doc, `<script data-zine-surface="bridge">1</script>`)

	Clean(doc, e)

	for _, sel := range []string{"." + layout.ContainerClass, "style#" + styles.StyleID, "#fullscreenToggle", "script"} {
		if doc.Find(sel).Length() != 0 {
			t.Fatalf("Clean() left %s", sel)
		}
	}
	after, _ := Render(doc)
	if after != before {
		t.Fatalf("Clean() =\n%s\nwant\n%s", after, before)
	}
}

func TestClean_KeepsAuthoredAttributes(t *testing.T) {
	src := `<!DOCTYPE html><html><head></head><body>
<div class="page" id="front-cover" style="display: none">cover</div>
<div class="page" id="page1" style="display: block; color: red">
<p id="hidden" style="display: none">secret</p>
<p id="editable" contenteditable="true" spellcheck="false">edit me</p>
</div>
</body></html>`
	doc := parseTestHTML(t, src)
	Clean(doc, layout.New(spread.Reference(), layout.Options{PageWidth: 2.75}))

	tests := []struct {
		sel, attr, want string
		present         bool
	}{
		{"#hidden", "style", "display: none", true},
		{"#editable", "contenteditable", "true", true},
		{"#editable", "spellcheck", "false", true},
		{"#page1", "style", "color: red;", true},
		{"#front-cover", "style", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.sel+"/"+tt.attr, func(t *testing.T) {
			got, ok := doc.Find(tt.sel).Attr(tt.attr)
			if ok != tt.present || got != tt.want {
				t.Fatalf("%s %s = %q (present %v), want %q (present %v)", tt.sel, tt.attr, got, ok, tt.want, tt.present)
			}
		})
	}
}

func TestRender_AddsDoctype(t *testing.T) {
	doc := parseTestHTML(t, `<html><body><p>x</p></body></html>`)
	got, err := Render(doc)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Fatalf("Render() = %q, want a doctype", got)
	}
	if strings.Count(strings.ToLower(got), "<!doctype") != 1 {
		t.Fatalf("Render() = %q, want exactly one doctype", got)
	}
}

func TestImageRefs(t *testing.T) {
	doc := parseTestHTML(t, `<html><body><div id="page1"><img src="a.png"><img src=""><img src="https://x/b.jpg"></div></body></html>`)
	refs := ImageRefs(doc)
	if len(refs) != 2 || refs[0] != "a.png" || refs[1] != "https://x/b.jpg" {
		t.Fatalf("ImageRefs() = %v", refs)
	}
}

func TestFromMarkdown(t *testing.T) {
	md := "# Tiny Zine\n\nHello cover.\n\n---\n\nPage *one*.\n\n---\n\nPage two.\n"
	m := spread.Reference()
	res, err := FromMarkdown([]byte(md), m)
	if err != nil {
		t.Fatalf("FromMarkdown() error = %v", err)
	}
	if res.Title != "Tiny Zine" {
		t.Fatalf("Title = %q, want Tiny Zine", res.Title)
	}

	doc := parseTestHTML(t, res.Source)
	if got := Title(doc); got != "Tiny Zine" {
		t.Fatalf("document title = %q", got)
	}
	if doc.Find("#front-cover h1").Text() != "Tiny Zine" {
		t.Fatalf("front cover = %q", doc.Find("#front-cover").Text())
	}
	if doc.Find("#page1 em").Text() != "one" {
		t.Fatalf("page1 = %q", doc.Find("#page1").Text())
	}
	if !strings.Contains(doc.Find("#page2").Text(), "Page two.") {
		t.Fatalf("page2 = %q", doc.Find("#page2").Text())
	}
	if strings.TrimSpace(doc.Find("#page3").Text()) != "" {
		t.Fatalf("page3 = %q, want empty", doc.Find("#page3").Text())
	}
	if doc.Find("hr").Length() != 0 {
		t.Fatal("page breaks leaked into the pages")
	}
}

func TestFromMarkdown_Overflow(t *testing.T) {
	md := strings.Repeat("text\n\n---\n\n", 9) + "last\n"
	res, err := FromMarkdown([]byte(md), spread.Reference())
	if !errors.Is(err, ErrTooManySections) {
		t.Fatalf("FromMarkdown() error = %v, want ErrTooManySections", err)
	}
	if res.Overflow != 2 {
		t.Fatalf("Overflow = %d, want 2", res.Overflow)
	}
	if res.Source == "" {
		t.Fatal("overflowing markdown produced no document")
	}
}

func TestFromMarkdown_Empty(t *testing.T) {
	if _, err := FromMarkdown([]byte("  \n"), spread.Reference()); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("FromMarkdown() error = %v, want ErrEmptyDocument", err)
	}
}
