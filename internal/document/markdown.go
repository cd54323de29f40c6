package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/russross/blackfriday/v2"

	"github.com/yuanying/zinespread/internal/spread"
)

// ErrTooManySections is returned, together with a usable result, when the
// markdown has more sections than the booklet has pages.
var ErrTooManySections = errors.New("more sections than pages")

// MarkdownResult is a document generated from markdown.
type MarkdownResult struct {
	Source string
	Title  string
	// Overflow counts sections that did not fit on a page and were dropped.
	Overflow int
}

// FromMarkdown fills the pages of m in reading order from markdown text.
// Thematic breaks (---) start a new page. The first heading becomes the title.
func FromMarkdown(md []byte, m *spread.Model) (MarkdownResult, error) {
	if len(bytes.TrimSpace(md)) == 0 {
		return MarkdownResult{}, ErrEmptyDocument
	}

	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags,
	})
	parser := blackfriday.New(
		blackfriday.WithRenderer(renderer),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
	)
	ast := parser.Parse(md)

	var (
		sections []string
		current  bytes.Buffer
		title    string
	)
	flush := func() {
		sections = append(sections, strings.TrimSpace(current.String()))
		current.Reset()
	}

	for node := ast.FirstChild; node != nil; node = node.Next {
		if node.Type == blackfriday.HorizontalRule {
			flush()
			continue
		}
		if title == "" && node.Type == blackfriday.Heading {
			title = headingText(node)
		}
		node.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
			return renderer.RenderNode(&current, n, entering)
		})
	}
	flush()

	pages := m.PageIDs()
	content := make(map[spread.PageID]string, len(pages))
	for i, section := range sections {
		if i >= len(pages) {
			break
		}
		content[pages[i]] = section
	}

	res := MarkdownResult{Source: build(m, title, content), Title: title}
	if len(sections) > len(pages) {
		res.Overflow = len(sections) - len(pages)
	}
	if res.Overflow > 0 {
		return res, fmt.Errorf("%w: %d sections left over after %d pages", ErrTooManySections, res.Overflow, len(pages))
	}
	return res, nil
}

func headingText(node *blackfriday.Node) string {
	var b strings.Builder
	node.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if entering && (n.Type == blackfriday.Text || n.Type == blackfriday.Code) {
			b.Write(n.Literal)
		}
		return blackfriday.GoToNext
	})
	return b.String()
}
