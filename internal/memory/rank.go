package memory

import "sort"

// rrfK is the reciprocal-rank fusion constant.
const rrfK = 60.0

// Fuse merges multiple ranked snippet lists using Reciprocal Rank Fusion.
// Each input list must be sorted best-first. The first list carries double
// weight (it is the similarity-ranked remote recall; local recency lists are
// secondary evidence). Top-rank bonuses: rank 0 -> +0.05, ranks 1-2 -> +0.02.
//
// Deduplication key is (timestamp, message); the fused score accumulates
// across lists so a memory surfacing everywhere ranks first.
func Fuse(limit int, lists ...[]Snippet) []Snippet {
	type key struct {
		ts  string
		msg string
	}
	scores := make(map[key]float64)
	snippets := make(map[key]Snippet)
	var order []key

	for listIdx, list := range lists {
		weight := 1.0
		if listIdx == 0 {
			weight = 2.0
		}
		for rank, sn := range list {
			k := key{ts: sn.Timestamp, msg: sn.Message}
			rankBonus := 0.0
			if rank == 0 {
				rankBonus = 0.05
			} else if rank <= 2 {
				rankBonus = 0.02
			}
			if _, exists := scores[k]; !exists {
				order = append(order, k)
				snippets[k] = sn
			}
			scores[k] += weight/(rrfK+float64(rank)+1) + rankBonus
		}
	}

	result := make([]Snippet, 0, len(order))
	for _, k := range order {
		sn := snippets[k]
		sn.Score = scores[k]
		result = append(result, sn)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
