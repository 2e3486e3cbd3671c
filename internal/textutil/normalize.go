package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes to NFD, strips combining marks, and recomposes,
// so "Bäcker" in composed and decomposed form fold to the same bytes.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeWord converts a word into the lowercase filesystem-safe token
// used as an image cache key. Diacritics are folded, letters lowercased,
// and anything outside [a-z0-9-_] becomes an underscore. Returns "" for
// input with no usable characters.
func NormalizeWord(word string) string {
	word = strings.TrimSpace(word)
	if word == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, word)
	if err == nil {
		word = folded
	}

	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_-")
}
