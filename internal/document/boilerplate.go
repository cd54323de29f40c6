package document

import (
	"strings"

	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
)

// Boilerplate returns a new document with one empty page element per page of m.
func Boilerplate(m *spread.Model) string {
	return build(m, "", nil)
}

func build(m *spread.Model, title string, content map[spread.PageID]string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n\t<head>\n")
	if title != "" {
		b.WriteString("\t\t<title>" + escapeText(title) + "</title>\n")
	}
	b.WriteString("\t\t<style>\n\t\t\t\n\t\t</style>\n\t</head>\n\t<body>\n")
	for _, id := range m.PageIDs() {
		b.WriteString("\t\t<div class=\"" + styles.PageClass + "\" id=\"" + string(id) + "\">\n")
		if c := content[id]; c != "" {
			for _, line := range strings.Split(strings.TrimRight(c, "\n"), "\n") {
				b.WriteString("\t\t\t" + line + "\n")
			}
		} else {
			b.WriteString("\t\t\t\n")
		}
		b.WriteString("\t\t</div>\n")
	}
	b.WriteString("\t</body>\n</html>\n")
	return b.String()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string { return textEscaper.Replace(s) }
