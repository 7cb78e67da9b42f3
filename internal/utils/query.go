// Package utils holds small query-string helpers shared by the HTTP handlers
// and the CLI. Nothing here knows about domains or registrars.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// BoolDefault parses s with strconv.ParseBool after trimming, returning def
// when s is empty or not a boolean.
func BoolDefault(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return def
}

// SplitList flattens comma separated values into one list, trimming items
// and dropping empties. Order is preserved; duplicates are kept.
//
//	SplitList("a, b", "c") // ["a" "b" "c"]
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
