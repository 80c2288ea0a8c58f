// Package inputval validates request input before it reaches the services.
package inputval

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Length limits for free-text fields.
const (
	MaxWorkspaceName = 100
	MaxDescription   = 500
	MaxMessage       = 1000
	MaxTitle         = 200
	MaxBody          = 20000
)

// IsValidEmail reports whether s is a bare address (no display name) with
// a well-formed local part and domain.
func IsValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return dotsOK(s[:at]) && dotsOK(s[at+1:])
}

func dotsOK(part string) bool {
	return !strings.HasPrefix(part, ".") && !strings.HasSuffix(part, ".") && !strings.Contains(part, "..")
}

// IsValidInviteRole reports whether role may be proposed in an invitation.
// Ownership is never offered.
func IsValidInviteRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin", "member":
		return true
	}
	return false
}

// WithinLimit reports whether s is at most max characters.
func WithinLimit(s string, max int) bool {
	return utf8.RuneCountInString(s) <= max
}
