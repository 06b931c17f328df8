package orchestrator

import (
	"strings"
	"unicode"
)

const (
	maxKeywords      = 8
	minKeywordLength = 4
)

// Keywords returns the distinct lowercase words of prompt with at least
// four letters, in order of first appearance, at most eight.
func Keywords(prompt string) []string {
	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	keywords := make([]string, 0, maxKeywords)
	seen := make(map[string]bool)
	for _, w := range words {
		if len([]rune(w)) < minKeywordLength || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
