package chunk

import (
	"regexp"
	"strings"
)

var (
	thinkingBlock = regexp.MustCompile(`(?is)<thinking>.*?</thinking>`)
	thinkingTag   = regexp.MustCompile(`(?i)</?thinking>`)
)

// StripThinkingSections removes <thinking>...</thinking> blocks entirely,
// then strips any stray unmatched tag, per the original source's
// thinking_sanitizer.strip_thinking_sections.
func StripThinkingSections(text string) string {
	text = thinkingBlock.ReplaceAllString(text, "")
	text = thinkingTag.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
