package rank

import "sort"

// FusedResult is one candidate's scores after dense/sparse fusion, prior to
// rank assignment.
type FusedResult struct {
	ChunkKey     string
	DenseScore   float64
	SparseScore  float64
	HybridScore  float64
}

// Fuse combines dense and sparse score maps for the given candidate keys.
// Negative scores are clamped to 0; each score set is independently
// max-normalized; the weighted sum uses dense_weight for dense and
// (1-dense_weight) for sparse. Only candidates appearing in at least one
// map participate. Results are sorted by (hybrid, dense, sparse) descending
// and truncated to topK.
func Fuse(candidateKeys []string, dense, sparse map[string]float64, topK int, denseWeight float64) []FusedResult {
	denseMax := maxPositive(dense)
	sparseMax := maxPositive(sparse)

	seen := make(map[string]bool, len(candidateKeys))
	var results []FusedResult
	for _, key := range candidateKeys {
		if seen[key] {
			continue
		}
		seen[key] = true

		d, dOK := dense[key]
		s, sOK := sparse[key]
		if !dOK && !sOK {
			continue
		}

		dNorm := normalize(clampNonNegative(d), denseMax)
		sNorm := normalize(clampNonNegative(s), sparseMax)
		hybrid := denseWeight*dNorm + (1-denseWeight)*sNorm

		results = append(results, FusedResult{
			ChunkKey:    key,
			DenseScore:  dNorm,
			SparseScore: sNorm,
			HybridScore: hybrid,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].HybridScore != results[j].HybridScore {
			return results[i].HybridScore > results[j].HybridScore
		}
		if results[i].DenseScore != results[j].DenseScore {
			return results[i].DenseScore > results[j].DenseScore
		}
		return results[i].SparseScore > results[j].SparseScore
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func maxPositive(scores map[string]float64) float64 {
	max := 0.0
	for _, v := range scores {
		if v > max {
			max = v
		}
	}
	return max
}

func normalize(v, max float64) float64 {
	if max == 0 {
		return 0
	}
	return v / max
}
