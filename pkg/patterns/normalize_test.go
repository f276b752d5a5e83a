package patterns

import "testing"

// TestNormalizeName verifies NFKC folding, lowercasing, trimming, and
// removal of non-printable runes.
func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "Read", "read"},
		{"whitespace trimmed", "  Write \t", "write"},
		{"fullwidth folded", "Ｒｅａｄ", "read"},
		{"ligature folded", "ﬁle_read", "file_read"},
		{"zero-width stripped", "re​ad", "read"},
		{"control chars stripped", "wri\x00te", "write"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
