// Package strings provides string helpers shared by config parsing and key construction.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trims each element and drops empties and
// duplicates. Order is preserved.
//
// Example:
//
//	SplitList(" 10.0.0.0/8, ,10.0.0.0/8,fd00::/8")
//	// Returns: []string{"10.0.0.0/8", "fd00::/8"}
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// EscapeKeySegment escapes '_' to "__" and then ':' to "_c" so a user-controlled segment
// cannot forge the ':' delimiter of a composite key. Escaping the escape character first
// keeps the mapping injective: "user_:admin" and "user:_admin" stay distinct.
func EscapeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}

// JoinKey escapes each segment and joins them with ':'.
func JoinKey(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = EscapeKeySegment(s)
	}
	return strings.Join(escaped, ":")
}
