package textnorm

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// stripHTML returns the concatenated text nodes of raw; entities are decoded exactly once.
// Unparseable input falls back to decoding the raw string.
func stripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}
	doc, err := xhtml.Parse(strings.NewReader(raw))
	if err != nil {
		return html.UnescapeString(raw)
	}
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}
