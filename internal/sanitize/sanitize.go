// Package sanitize cleans user-supplied text before it is stored.
//
// Short fields (project names, issue titles, usernames) are plain text: every
// tag is stripped. Descriptions may keep basic formatting markup, filtered
// through bluemonday's user-generated-content policy.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Policies are safe for concurrent use once built.
var (
	strict = bluemonday.StrictPolicy()
	rich   = newRichPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowRelativeURLs(false)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Text strips all markup from s and trims surrounding whitespace.
// Entities the policy escapes are decoded again so "Q&A" stays "Q&A".
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// RichText filters s down to safe formatting markup. Input the policy
// accepts unchanged, apart from entity escaping, is returned as written, so
// "if a < b && c > d" is stored as typed.
func RichText(s string) string {
	s = strings.TrimSpace(s)
	clean := rich.Sanitize(s)
	if html.UnescapeString(clean) == s {
		return s
	}
	return strings.TrimSpace(clean)
}
