package oauth

import (
	"slices"
	"strings"
)

// NormalizeScopes returns the canonical form of a scope set: blank entries
// dropped, duplicates removed, sorted and space separated. Two scope sets
// holding the same strings in any order normalize identically.
func NormalizeScopes(scopes []string) string {
	normalized := uniqueScopes(scopes)
	slices.Sort(normalized)
	return strings.Join(normalized, " ")
}

// uniqueScopes keeps the first occurrence of each non-blank scope, in input
// order.
func uniqueScopes(scopes []string) []string {
	unique := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(unique, s) {
			continue
		}
		unique = append(unique, s)
	}
	return unique
}

func validateScopes(scopes []string) error {
	if scopes == nil {
		return ValidationError{Field: "scopes", Reason: "must not be nil"}
	}
	if len(uniqueScopes(scopes)) == 0 {
		return ValidationError{Field: "scopes", Reason: "at least one scope is required"}
	}
	return nil
}
