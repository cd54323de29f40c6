package document

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/styles"
)

// SurfaceAttr marks elements a surface injects; Clean removes them.
const SurfaceAttr = "data-zine-surface"

// editorSelectors match markup that only exists while a document is shown on
// a surface.
var editorSelectors = []string{
	"style#" + styles.StyleID,
	"#" + styles.ToggleID,
	"." + styles.NavClass,
	"[" + SurfaceAttr + "]",
}

// Clean removes everything a surface added to the document: spread
// containers (moving flat-mode pages back), injected styles, scripts and
// controls, and display overrides on the page elements. Authored markup is
// left alone.
func Clean(doc *goquery.Document, e *layout.Engine) {
	e.Teardown(doc)

	for _, sel := range editorSelectors {
		doc.Find(sel).Remove()
	}

	for _, id := range e.Model().PageIDs() {
		page := layout.FindPage(doc, id)
		style, ok := page.Attr("style")
		if !ok {
			continue
		}
		if rest := withoutDisplay(style); rest == "" {
			page.RemoveAttr("style")
		} else {
			page.SetAttr("style", rest)
		}
	}
}

// withoutDisplay drops display declarations from an inline style.
func withoutDisplay(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(name), "display") {
			continue
		}
		kept = append(kept, decl)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "; ") + ";"
}
