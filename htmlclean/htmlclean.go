// Package htmlclean strips markup from upstream-supplied descriptions
// before they are persisted, since catalog descriptions arrive as HTML
// fragments but the store and API surface deal in plain text.
package htmlclean

import (
	"strings"

	"golang.org/x/net/html"
)

// Strip removes all tags from an HTML fragment, decodes entities (handled
// implicitly by the tokenizer), and collapses runs of whitespace left
// behind by block-level tags into single spaces.
func Strip(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if isBlockTag(string(name)) {
				b.WriteByte(' ')
			}
		}
	}
}

func isBlockTag(name string) bool {
	switch name {
	case "p", "br", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	default:
		return false
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
