// Package textx provides grapheme-cluster aware text helpers. Lengths are
// measured in user-perceived characters, so emoji and combining sequences
// count as one.
package textx

import "github.com/rivo/uniseg"

// CountGraphemes returns the number of grapheme clusters in s.
func CountGraphemes(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TruncateGraphemes returns s cut down to at most limit grapheme clusters.
func TruncateGraphemes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	state := -1
	rest := s
	taken := 0
	n := 0
	for len(rest) > 0 && n < limit {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		taken += len(cluster)
		n++
	}
	if len(rest) == 0 {
		return s
	}
	return s[:taken]
}
