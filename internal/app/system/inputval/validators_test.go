package inputval

import (
	"strings"
	"testing"
)

func TestIsValidInviteRole(t *testing.T) {
	for role, want := range map[string]bool{
		"member":   true,
		"admin":    true,
		" Member ": true,
		"ADMIN":    true,
		"owner":    false,
		"viewer":   false,
		"":         false,
	} {
		if got := IsValidInviteRole(role); got != want {
			t.Errorf("IsValidInviteRole(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestWithinLimit(t *testing.T) {
	tests := []struct {
		name string
		s    string
		max  int
		want bool
	}{
		{"workspace name at limit, multi-byte", strings.Repeat("ø", MaxWorkspaceName), MaxWorkspaceName, true},
		{"workspace name over", strings.Repeat("w", MaxWorkspaceName+1), MaxWorkspaceName, false},
		{"message at limit", strings.Repeat("m", MaxMessage), MaxMessage, true},
		{"title over", strings.Repeat("t", MaxTitle+1), MaxTitle, false},
		{"empty", "", MaxDescription, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinLimit(tt.s, tt.max); got != tt.want {
				t.Errorf("WithinLimit(len %d, %d) = %v, want %v", len(tt.s), tt.max, got, tt.want)
			}
		})
	}
}
