// Package normalize implements the deterministic text normalizer
// (spec.md §4.1): a pure, side-effect-free transform with no external calls.
package normalize

import (
	"regexp"
	"strings"
)

var (
	crlf           = regexp.MustCompile(`\r\n|\r`)
	zeroWidth      = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{FEFF}]`)
	softHyphenWrap = regexp.MustCompile(`(\w)-\n(\w)`)
	nonNewlineRuns = regexp.MustCompile(`[^\S\n]+`)
	blankLineRuns  = regexp.MustCompile(`\n{2,}`)
)

// Options configures normalization. MaxBlankLines bounds how many
// consecutive blank lines survive collapsing (0 allowed). RemoveRepeatedShortLines
// enables the repeated-header-removal pass.
type Options struct {
	MaxBlankLines             int
	RemoveRepeatedShortLines  bool
}

// Result carries the normalized text plus the two counters the spec requires
// for observability and the idempotence test (§8).
type Result struct {
	Text                      string
	RemovedRepeatedLineCount  int
	CollapsedWhitespaceCount  int
}

// Normalize runs the six-step pipeline from spec.md §4.1, in order.
func Normalize(raw string, opts Options) Result {
	text := crlf.ReplaceAllString(raw, "\n")
	text = zeroWidth.ReplaceAllString(text, "")
	text = softHyphenWrap.ReplaceAllString(text, "$1$2")

	collapsed := 0
	text = nonNewlineRuns.ReplaceAllStringFunc(text, func(match string) string {
		if match != " " {
			collapsed++
		}
		return " "
	})

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	removed := 0
	if opts.RemoveRepeatedShortLines {
		text, removed = removeRepeatedShortLines(text)
	}

	text = collapseBlankLines(text, opts.MaxBlankLines)
	text = strings.TrimSpace(text)

	return Result{
		Text:                     text,
		RemovedRepeatedLineCount: removed,
		CollapsedWhitespaceCount: collapsed,
	}
}

// removeRepeatedShortLines deletes, globally, any line at most 100 chars
// long that occurs 3 or more times across the document.
func removeRepeatedShortLines(text string) (string, int) {
	lines := strings.Split(text, "\n")
	counts := make(map[string]int, len(lines))
	for _, line := range lines {
		if len(line) <= 100 {
			counts[line]++
		}
	}

	toRemove := make(map[string]bool)
	for line, n := range counts {
		if line != "" && n >= 3 {
			toRemove[line] = true
		}
	}

	if len(toRemove) == 0 {
		return text, 0
	}

	removed := 0
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if toRemove[line] {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}

// collapseBlankLines collapses runs of blank lines to at most maxBlank,
// where "blank lines" means maxBlank+1 consecutive newlines become
// maxBlank+1-worth of separator (maxBlank=0 collapses to a single newline,
// i.e. no blank lines survive).
func collapseBlankLines(text string, maxBlank int) string {
	if maxBlank < 0 {
		maxBlank = 0
	}
	replacement := strings.Repeat("\n", maxBlank+1)
	return blankLineRuns.ReplaceAllString(text, replacement)
}
