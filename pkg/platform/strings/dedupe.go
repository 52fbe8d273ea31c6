// Package strings provides string-slice utilities shared across services.
package strings

import (
	"sort"
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SortedUnion merges any number of slices into one sorted, deduplicated
// slice. Empty and whitespace-only elements are dropped.
func SortedUnion(slices ...[]string) []string {
	seen := make(map[string]struct{})
	for _, s := range slices {
		for _, v := range s {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				continue
			}
			seen[trimmed] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}
