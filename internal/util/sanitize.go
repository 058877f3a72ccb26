package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// richTextPolicy allows the markup produced by the dashboard's rich-text
	// editor while stripping scripts, event handlers and the like.
	richTextPolicy  = bluemonday.UGCPolicy()
	plainTextPolicy = bluemonday.StrictPolicy()
)

// SanitizeHTML cleans user-supplied rich text.
func SanitizeHTML(s string) string {
	return strings.TrimSpace(richTextPolicy.Sanitize(s))
}

// StripHTML removes every tag and returns plain text.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(s)))
}
