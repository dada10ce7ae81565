// Package sanitize strips unsafe HTML from user supplied text.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strictPolicy removes all HTML tags and attributes.
	strictPolicy = bluemonday.StrictPolicy()

	// ugcPolicy keeps basic formatting (<p>, <b>, <i>, <a>, lists, <br>).
	ugcPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML tags and returns plain text.
func Text(input string) string {
	return strictPolicy.Sanitize(input)
}

// HTML removes scripts, event handlers and styles but keeps safe formatting.
func HTML(input string) string {
	return ugcPolicy.Sanitize(input)
}

// Fields replaces each string with its trimmed plain text form.
func Fields(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = strings.TrimSpace(Text(*f))
		}
	}
}
