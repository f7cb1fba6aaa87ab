package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips every HTML tag from user supplied text. Entities the
// policy escapes are decoded again so "Read & Write" survives as typed.
func SanitizeText(input string) string {
	return html.UnescapeString(textPolicy.Sanitize(input))
}
