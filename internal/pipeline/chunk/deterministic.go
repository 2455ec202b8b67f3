package chunk

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Deterministic produces variable-size, paragraph-aware chunks with
// optional character overlap, per spec.md §4.2.
func Deterministic(text string, opts DeterministicOptions) []Candidate {
	opts = opts.Clamp()

	var paragraphs []string
	for _, raw := range strings.Split(text, "\n\n") {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, splitLongParagraph(p, opts.MaxChunkChars, opts.MinChunkChars)...)
	}
	if len(paragraphs) == 0 {
		return nil
	}

	headingFusionBudget := opts.MaxChunkChars + max(80, opts.OverlapChars)

	var chunks []string
	current := ""
	for _, paragraph := range paragraphs {
		if current == "" {
			current = paragraph
			continue
		}

		tentative := current + "\n\n" + paragraph
		if len(tentative) <= opts.MaxChunkChars ||
			(len(current) < opts.MinChunkChars && len(tentative) <= headingFusionBudget) {
			current = tentative
			continue
		}

		chunks = append(chunks, current)
		current = paragraph
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	var merged []string
	for _, c := range chunks {
		if len(merged) > 0 && len(c) < opts.MinChunkChars &&
			len(merged[len(merged)-1])+2+len(c) <= headingFusionBudget {
			merged[len(merged)-1] = strings.TrimSpace(merged[len(merged)-1] + "\n\n" + c)
		} else {
			merged = append(merged, c)
		}
	}

	candidates := make([]Candidate, 0, len(merged))
	cursor := 0
	for index, chunkText := range merged {
		searchFrom := min(cursor, len(text))
		start := strings.Index(text[searchFrom:], chunkText)
		if start == -1 {
			start = cursor
		} else {
			start += searchFrom
		}
		end := start + len(chunkText)

		candidates = append(candidates, Candidate{
			ChunkIndex: index,
			StartChar:  start,
			EndChar:    end,
			Text:       chunkText,
			Rationale:  rationaleDeterministic,
		})

		if opts.OverlapChars > 0 {
			cursor = max(end-opts.OverlapChars, 0)
		} else {
			cursor = end
		}
	}
	return candidates
}

// splitLongParagraph splits oversized paragraphs on sentence boundaries,
// falling back to a hard wrap when no sentence boundary exists.
func splitLongParagraph(paragraph string, maxChunkChars, minChunkChars int) []string {
	if len(paragraph) <= maxChunkChars {
		return []string{paragraph}
	}

	var sentences []string
	for _, s := range splitSentences(paragraph) {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= 1 {
		return hardWrap(paragraph, maxChunkChars)
	}

	var pieces []string
	current := sentences[0]
	for _, sentence := range sentences[1:] {
		tentative := strings.TrimSpace(current + " " + sentence)
		if len(tentative) <= maxChunkChars {
			current = tentative
			continue
		}
		pieces = append(pieces, current)
		current = sentence
	}
	if current != "" {
		pieces = append(pieces, current)
	}

	var normalized []string
	for _, piece := range pieces {
		if len(piece) <= maxChunkChars {
			normalized = append(normalized, piece)
		} else {
			normalized = append(normalized, hardWrap(piece, maxChunkChars)...)
		}
	}

	var mergedPieces []string
	for _, piece := range normalized {
		if len(mergedPieces) > 0 && len(piece) < minChunkChars {
			mergedPieces[len(mergedPieces)-1] = strings.TrimSpace(mergedPieces[len(mergedPieces)-1] + " " + piece)
		} else {
			mergedPieces = append(mergedPieces, piece)
		}
	}
	return mergedPieces
}

// splitSentences splits on a sentence-ending punctuation mark followed by
// whitespace, keeping the punctuation with the sentence that precedes it
// (equivalent to Python's re.split(r"(?<=[.!?])\s+", paragraph), which Go's
// regexp package can't express directly since it lacks lookbehind).
func splitSentences(paragraph string) []string {
	locs := sentenceBoundary.FindAllStringIndex(paragraph, -1)
	if len(locs) == 0 {
		return []string{paragraph}
	}
	sentences := make([]string, 0, len(locs)+1)
	cursor := 0
	for _, loc := range locs {
		cut := loc[0] + 1 // keep the punctuation character, drop only the whitespace run
		sentences = append(sentences, paragraph[cursor:cut])
		cursor = loc[1]
	}
	if cursor < len(paragraph) {
		sentences = append(sentences, paragraph[cursor:])
	}
	return sentences
}

// hardWrap splits text into fixed-size segments when no sentence boundary
// is available to split on.
func hardWrap(text string, maxChunkChars int) []string {
	var wrapped []string
	for start := 0; start < len(text); start += maxChunkChars {
		end := min(start+maxChunkChars, len(text))
		segment := strings.TrimSpace(text[start:end])
		if segment != "" {
			wrapped = append(wrapped, segment)
		}
	}
	return wrapped
}
