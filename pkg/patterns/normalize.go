package patterns

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName converts a tool name to canonical form for classification.
//
// Agents relay tool names verbatim from model output, so the operation
// classifier must not be fooled by visually similar Unicode: fullwidth
// characters (Ｗｒｉｔｅ), ligatures (ﬁle_read), or zero-width characters
// spliced into a name. NFKC folds these to their plain forms; the result
// is lowercased, trimmed, and stripped of non-printable runes.
func NormalizeName(s string) string {
	normalized := norm.NFKC.String(s)
	normalized = strings.ToLower(normalized)
	normalized = strings.TrimSpace(normalized)
	normalized = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) && !unicode.IsControl(r) {
			return r
		}
		return -1
	}, normalized)
	return normalized
}
