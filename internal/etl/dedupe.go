package etl

import (
	"fmt"
	"strings"
)

// Policy selects which occurrence survives when a batch holds several
// records with the same key.
type Policy string

const (
	// KeepFirst keeps the earliest occurrence in file order.
	KeepFirst Policy = "first"
	// KeepLast keeps the latest occurrence in file order.
	KeepLast Policy = "last"
)

// ParsePolicy parses "first" or "last" (also "keep-first" and "keep-last").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "keep-first":
		return KeepFirst, nil
	case "last", "keep-last":
		return KeepLast, nil
	}
	return "", fmt.Errorf("unknown dedup policy %q", s)
}

// Dedupe collapses items sharing a key according to policy. Winners are
// returned in the order of their own position in the input.
func Dedupe[T any, K comparable](items []T, key func(T) K, policy Policy) []T {
	if len(items) == 0 {
		return nil
	}

	winner := make(map[K]int, len(items))
	for i, it := range items {
		k := key(it)
		if _, seen := winner[k]; seen && policy != KeepLast {
			continue
		}
		winner[k] = i
	}

	out := make([]T, 0, len(winner))
	for i, it := range items {
		if winner[key(it)] == i {
			out = append(out, it)
		}
	}
	return out
}
