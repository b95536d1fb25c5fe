// Package string holds the small text helpers shared by request
// normalization and validation error reporting.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims surrounding whitespace from each value in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// TrimSlice trims surrounding whitespace from every element in place.
func TrimSlice(ss []string) {
	for i := range ss {
		ss[i] = strings.TrimSpace(ss[i])
	}
}

// ToSnakeCase converts a Go field name to the snake_case form used in
// client-facing validation errors. Acronym runs stay one word until a
// lowercase letter starts the next ("ChatID" -> "chat_id",
// "HTTPServer" -> "http_server").
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if boundary(runes, i) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// boundary reports whether a word starts at position i: an upper-case rune
// that either follows a lower-case rune or precedes one.
func boundary(runes []rune, i int) bool {
	if i == 0 {
		return false
	}
	if unicode.IsLower(runes[i-1]) {
		return true
	}
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
