// Package tokenize splits source text and labels into comparable lowercase terms.
//
// Words follow identifier rules: a word starts with a letter or '_' and continues
// with letters, digits or '_'. Everything else is a delimiter. Terms further split
// words on snake_case, kebab, camelCase and letter/digit boundaries.
package tokenize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Words returns the identifier-like words of src in order of appearance.
func Words(src string) []string {
	var words []string
	isStart := func(r rune) bool { return r == '_' || unicode.IsLetter(r) }
	isCont := func(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		if !isStart(r) {
			i += w
			continue
		}
		start := i
		i += w
		for i < len(src) {
			rc, wc := utf8.DecodeRuneInString(src[i:])
			if !isCont(rc) {
				break
			}
			i += wc
		}
		words = append(words, src[start:i])
	}
	return words
}

// Split breaks one identifier into lowercase parts:
// "OrdersDB" -> [orders db], "http_server2" -> [http server 2], "HTTPServer" -> [http server].
func Split(word string) []string {
	runes := []rune(word)
	var parts []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return parts
}

// Terms returns the split, lowercased parts of every word in text.
func Terms(text string) []string {
	var terms []string
	for _, w := range Words(text) {
		terms = append(terms, Split(w)...)
	}
	return terms
}

// Set collects terms into a membership set.
func Set(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// Normalize lowercases s and keeps only letters and digits,
// so "Orders DB", "orders_db" and "OrdersDB" all become "ordersdb".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
