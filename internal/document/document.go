// Package document loads authored zine documents and produces the markup
// served to surfaces and written to disk.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/spread"
)

var ErrEmptyDocument = errors.New("document is empty")

// Document is the raw text of one authored zine.
type Document struct {
	Path   string // file the document was loaded from, if any
	Source string
}

// New wraps source text.
func New(source, path string) *Document {
	return &Document{Path: path, Source: source}
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return New(string(data), path), nil
}

// Dir returns the directory relative references resolve against.
func (d *Document) Dir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}

// Parse builds a fresh DOM from the source. An empty source parses as an
// empty document so a surface always has something to show.
func (d *Document) Parse() (*goquery.Document, error) {
	src := d.Source
	if strings.TrimSpace(src) == "" {
		src = emptyDocument
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

const emptyDocument = `<!DOCTYPE html><html><head></head><body></body></html>`

// Title returns the text of the document's <title>.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("head title").First().Text())
}

// ImageRefs lists the src of every <img> outside the spread container.
func ImageRefs(doc *goquery.Document) []string {
	refs := []string{}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("."+layout.ContainerClass).Length() > 0 {
			return
		}
		if src, ok := s.Attr("src"); ok && src != "" {
			refs = append(refs, src)
		}
	})
	return refs
}

// PageReport tells which pages of a model a document provides.
type PageReport struct {
	Present []spread.PageID
	Missing []spread.PageID
}

// Pages checks the document for every page of m.
func Pages(doc *goquery.Document, m *spread.Model) PageReport {
	var r PageReport
	for _, id := range m.PageIDs() {
		if layout.FindPage(doc, id).Length() > 0 {
			r.Present = append(r.Present, id)
		} else {
			r.Missing = append(r.Missing, id)
		}
	}
	return r
}

var headOpenRe = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
var htmlOpenRe = regexp.MustCompile(`(?i)<html(\s[^>]*)?>`)

// InsertAfterHead inserts snippet right after the opening <head> tag so that
// authored styles later in the head still take precedence. Without a head the
// snippet follows <html>, and without either it is prepended.
func InsertAfterHead(source, snippet string) string {
	for _, re := range []*regexp.Regexp{headOpenRe, htmlOpenRe} {
		if loc := re.FindStringIndex(source); loc != nil {
			return source[:loc[1]] + snippet + source[loc[1]:]
		}
	}
	return snippet + source
}

// InjectStyle places a <style> element with the given id first in <head>,
// replacing an earlier one with the same id. The element is marked as
// surface markup so Clean removes it.
func InjectStyle(doc *goquery.Document, id, css string) {
	doc.Find("style#" + id).Remove()
	// Keep a literal </style> inside the rules from closing the element.
	css = strings.ReplaceAll(css, "</style>", "<\\/style>")
	head := doc.Find("head").First()
	head.PrependHtml(fmt.Sprintf(`<style id="%s" %s="style">%s</style>`, id, SurfaceAttr, css))
}

// AppendToBody appends raw markup at the end of <body>.
func AppendToBody(doc *goquery.Document, markup string) {
	doc.Find("body").First().AppendHtml(markup)
}

// Render serializes the whole document, doctype included.
func Render(doc *goquery.Document) (string, error) {
	var buf bytes.Buffer
	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(html)), "<!doctype") {
		buf.WriteString("<!DOCTYPE html>\n")
	}
	buf.WriteString(html)
	return buf.String(), nil
}
