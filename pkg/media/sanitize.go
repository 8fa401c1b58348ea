package media

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	synopsisPolicy = bluemonday.NewPolicy().AllowElements("b", "i", "em", "strong", "br", "p")
	stripPolicy    = bluemonday.StrictPolicy()
)

// SanitizeSynopsis keeps only basic formatting tags and drops every
// attribute, for synopses rendered as HTML.
func SanitizeSynopsis(s string) string {
	return synopsisPolicy.Sanitize(s)
}

// StripHTML removes all markup and returns plain text. Line breaks become
// newlines so terminal output keeps paragraph structure.
func StripHTML(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(s)
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
