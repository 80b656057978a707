package util

import "strings"

// RenderTemplate does simple {var} replacement. The HTML render step for
// outgoing mail is an external concern; this only fills subject/body text.
func RenderTemplate(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
