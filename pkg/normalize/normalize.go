// Package normalize renders strings into a lowercase, accent-free canonical
// form used for case and accent insensitive matching. The canonical form is
// for comparison only and is never displayed.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// String decomposes s, drops combining marks and every remaining non-ASCII
// rune, and lowercases the result. It is total: any input, including the
// empty string, yields a result without error.
func String(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder

	b.Grow(len(decomposed))

	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return b.String()
}
