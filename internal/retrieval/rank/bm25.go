package rank

import "math"

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Candidate is one scoreable document in the sparse pass, keyed by an
// opaque chunk key.
type Candidate struct {
	ChunkKey string
	Text     string
}

// ScoreSparse computes BM25 scores for query over candidates, returning the
// top-k positive scores keyed by chunk key. An empty candidate list or a
// query with no matching terms both return an empty map, per spec.md §8.
func ScoreSparse(query string, candidates []Candidate, topK int) map[string]float64 {
	if len(candidates) == 0 {
		return map[string]float64{}
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return map[string]float64{}
	}

	queryWeights := make(map[string]float64)
	for _, term := range queryTerms {
		queryWeights[term]++
	}

	docTermFreqs := make([]map[string]int, len(candidates))
	docLengths := make([]int, len(candidates))
	docFreq := make(map[string]int)

	totalLength := 0
	for i, c := range candidates {
		tokens := Tokenize(c.Text)
		docLengths[i] = len(tokens)
		totalLength += len(tokens)

		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		docTermFreqs[i] = freqs

		for term := range freqs {
			docFreq[term]++
		}
	}

	n := float64(len(candidates))
	avgLength := float64(totalLength) / n
	if avgLength < 1.0 {
		avgLength = 1.0
	}

	scores := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		var score float64
		freqs := docTermFreqs[i]
		length := float64(docLengths[i])

		for term, qWeight := range queryWeights {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			nT := float64(docFreq[term])
			idf := math.Log(1 + (n-nT+0.5)/(nT+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*length/avgLength)
			score += qWeight * idf * (tf * (bm25K1 + 1)) / math.Max(norm, 1e-9)
		}

		if score > 0 {
			scores[c.ChunkKey] = score
		}
	}

	return topNScores(scores, topK)
}

func topNScores(scores map[string]float64, topK int) map[string]float64 {
	if topK <= 0 || topK >= len(scores) {
		return scores
	}

	type kv struct {
		key   string
		score float64
	}
	ranked := make([]kv, 0, len(scores))
	for k, v := range scores {
		ranked = append(ranked, kv{k, v})
	}
	// simple selection of the top-k by score, descending
	for i := 0; i < topK && i < len(ranked); i++ {
		maxIdx := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].score > ranked[maxIdx].score {
				maxIdx = j
			}
		}
		ranked[i], ranked[maxIdx] = ranked[maxIdx], ranked[i]
	}

	out := make(map[string]float64, topK)
	for i := 0; i < topK && i < len(ranked); i++ {
		out[ranked[i].key] = ranked[i].score
	}
	return out
}
