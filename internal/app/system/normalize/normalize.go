// Package normalize canonicalizes user-supplied strings before they are
// compared or stored.
package normalize

import "strings"

// Email trims and lowercases an email address. Invitation addressing and
// profile lookup compare the folded form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DisplayName returns the trimmed name, or the local part of email when
// name is blank.
func DisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	e := strings.TrimSpace(email)
	if i := strings.IndexByte(e, '@'); i > 0 {
		return e[:i]
	}
	return e
}
