// Package rank implements the hybrid ranker: tokenizer, BM25 sparse scoring,
// and dense/sparse fusion (spec.md §4.5).
package rank

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases the input and extracts maximal [a-z0-9]+ runs.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
