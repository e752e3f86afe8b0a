package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML from free-text form input and returns it as plain
// text. Entities the policy escapes are decoded again; templates escape on
// output.
// Use for: names, locations, descriptions, survey comments.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// Trimmed is Text applied after trimming surrounding whitespace.
func Trimmed(input string) string {
	return strings.TrimSpace(Text(strings.TrimSpace(input)))
}
