package orchestrator

import "regexp"

var citationPattern = regexp.MustCompile(`[\[【](S\d+)[\]】]`)

// ExtractCitations finds inline citation markers in answer, deduplicates
// them in first-seen order, drops any id outside activeSourceIDs, and
// returns the used citation list plus the answer with markers stripped,
// per spec.md §4.8.
func ExtractCitations(answer string, activeSourceIDs map[string]bool) (citationsUsed []string, stripped string) {
	seen := make(map[string]bool)
	matches := citationPattern.FindAllStringSubmatchIndex(answer, -1)

	for _, m := range matches {
		id := answer[m[2]:m[3]]
		if activeSourceIDs[id] && !seen[id] {
			seen[id] = true
			citationsUsed = append(citationsUsed, id)
		}
	}

	stripped = citationPattern.ReplaceAllString(answer, "")
	return citationsUsed, stripped
}
