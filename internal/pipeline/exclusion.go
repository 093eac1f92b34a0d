package pipeline

import (
	"fmt"
	"strings"
)

// NormalizeExclusions keeps at most limit unique, non-empty, trimmed entries
// in first-seen order.
func NormalizeExclusions(items []string, limit int) []string {
	if limit <= 0 || len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, min(len(items), limit))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

// exclusionClause renders the advisory "do not repeat" hint. The model may
// still repeat items; results are never filtered against the list.
func exclusionClause(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("EXCLUDE: the following items were already shown. Return different ones and do not repeat any of them:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return strings.TrimRight(b.String(), "\n")
}
