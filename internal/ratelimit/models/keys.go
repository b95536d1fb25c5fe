package models

import (
	"fmt"
	"strings"
)

// KeyPrefix represents the scope of a rate limit key.
type KeyPrefix string

const (
	KeyPrefixIP   KeyPrefix = "ip"
	KeyPrefixUser KeyPrefix = "user"
)

// NewKey builds a bucket key like "ip:203.0.113.9" or "user:42".
// Identifiers are sanitized so user-controlled values containing the
// delimiter cannot collide with adjacent buckets.
func NewKey(prefix KeyPrefix, identifier string) string {
	return fmt.Sprintf("%s:%s", prefix, sanitizeKeySegment(identifier))
}

// sanitizeKeySegment escapes delimiter characters in key segments.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// No two distinct inputs produce the same sanitized output.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
