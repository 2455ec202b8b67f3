package chunk

import (
	"strings"
	"testing"
)

func TestDeterministicOversizedParagraphs(t *testing.T) {
	paragraph := strings.Repeat("Lorem ipsum dolor sit amet consectetur adipiscing elit. ", 7)
	paragraph = strings.TrimSpace(paragraph)
	text := strings.Join([]string{paragraph, paragraph, paragraph, paragraph}, "\n\n")

	candidates := Deterministic(text, DeterministicOptions{MaxChunkChars: 900, MinChunkChars: 200, OverlapChars: 0})

	if len(candidates) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(candidates))
	}

	lastEnd := -1
	for _, c := range candidates {
		if len(c.Text) > 950 {
			t.Fatalf("chunk exceeds bound: len=%d", len(c.Text))
		}
		if c.StartChar < lastEnd {
			t.Fatalf("offsets not monotonically increasing: start=%d after lastEnd=%d", c.StartChar, lastEnd)
		}
		if c.StartChar >= c.EndChar {
			t.Fatalf("expected start < end, got start=%d end=%d", c.StartChar, c.EndChar)
		}
		lastEnd = c.EndChar
	}
}

func TestDeterministicSentenceSplitKeepsTerminator(t *testing.T) {
	paragraph := strings.Repeat("Lorem ipsum dolor sit amet consectetur adipiscing elit. ", 20)
	paragraph = strings.TrimSpace(paragraph)
	if len(paragraph) <= 900 {
		t.Fatalf("fixture paragraph too short to exercise splitLongParagraph: len=%d", len(paragraph))
	}

	candidates := Deterministic(paragraph, DeterministicOptions{MaxChunkChars: 900, MinChunkChars: 200, OverlapChars: 0})

	for _, c := range candidates[:len(candidates)-1] {
		trimmed := strings.TrimRight(c.Text, " ")
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Fatalf("expected chunk to end on a sentence terminator, got %q", c.Text)
		}
	}
}

func TestDeterministicRationale(t *testing.T) {
	candidates := Deterministic("Paragraph one.\n\nParagraph two.", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100, OverlapChars: 0})
	for _, c := range candidates {
		if c.Rationale != "Deterministic paragraph-aware boundary" {
			t.Fatalf("unexpected rationale: %q", c.Rationale)
		}
	}
}

func TestDeterministicContiguousIndices(t *testing.T) {
	text := strings.Repeat("Paragraph text here.\n\n", 20)
	candidates := Deterministic(text, DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100, OverlapChars: 0})
	for i, c := range candidates {
		if c.ChunkIndex != i {
			t.Fatalf("expected contiguous chunk indices, got index %d at position %d", c.ChunkIndex, i)
		}
	}
}

func TestDeterministicEmptyInput(t *testing.T) {
	if candidates := Deterministic("   \n\n  ", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100}); len(candidates) != 0 {
		t.Fatalf("expected no chunks for blank input, got %d", len(candidates))
	}
}
