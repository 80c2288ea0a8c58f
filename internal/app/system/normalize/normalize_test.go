package normalize

import "testing"

func TestEmail(t *testing.T) {
	tests := map[string]string{
		"dana@example.com":          "dana@example.com",
		"Dana@Example.COM":          "dana@example.com",
		"\tdana@example.com \n":     "dana@example.com",
		"  ":                        "",
		"Trip.Planner@Mail.Example": "trip.planner@mail.example",
	}
	for in, want := range tests {
		if got := Email(in); got != want {
			t.Errorf("Email(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmail_FoldsInviteeAndProfileAlike(t *testing.T) {
	if Email("Bob@Example.com") != Email(" bob@example.COM") {
		t.Error("differently cased addresses should fold to the same key")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name, email string
		want        string
	}{
		{"Dana Ortiz", "dana@example.com", "Dana Ortiz"},
		{"  Dana  ", "dana@example.com", "Dana"},
		{"", "bob@example.com", "bob"},
		{" ", " carol@example.com ", "carol"},
		{"", "@example.com", "@example.com"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.name, tt.email); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}
