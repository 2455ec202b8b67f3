// Package chunk implements the deterministic and agentic chunkers
// (spec.md §4.2, §4.3).
package chunk

// Candidate is one proposed chunk boundary over a document's normalized
// text, prior to contextualization.
type Candidate struct {
	ChunkIndex int
	StartChar  int
	EndChar    int
	Text       string
	Rationale  string
}

// DeterministicOptions bounds the deterministic chunker per spec.md §4.2.
type DeterministicOptions struct {
	MaxChunkChars int
	MinChunkChars int
	OverlapChars  int
}

// Clamp enforces the spec's bounds: 500<=max<=8000, 100<=min<=3000,
// 0<=overlap<=1000, min<=max.
func (o DeterministicOptions) Clamp() DeterministicOptions {
	o.MaxChunkChars = clamp(o.MaxChunkChars, 500, 8000)
	o.MinChunkChars = clamp(o.MinChunkChars, 100, 3000)
	o.OverlapChars = clamp(o.OverlapChars, 0, 1000)
	if o.MinChunkChars > o.MaxChunkChars {
		o.MinChunkChars = o.MaxChunkChars
	}
	return o
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const (
	rationaleDeterministic = "Deterministic paragraph-aware boundary"
	rationaleAgenticDefault = "Agentic boundary selection"
	rationaleFallbackPrefix = "Fallback to deterministic chunking"
)
