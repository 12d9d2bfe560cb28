package utils

import "github.com/microcosm-cc/bluemonday"

// Site metadata is plain text; strip every tag rather than allowlisting some.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize cleans user supplied display text to prevent stored XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
