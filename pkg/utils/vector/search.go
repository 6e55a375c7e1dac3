package vector

import (
	"sort"
)

// Scored pairs a candidate with its similarity to the query
type Scored[T any] struct {
	Item  T
	Score float64
}

// SearchOptions controls FindSimilar. MaxResults <= 0 means no limit.
type SearchOptions struct {
	MinScore   float64
	MaxResults int
}

// FindSimilar scores every candidate against query with a linear scan, keeps
// those scoring at least MinScore, and returns them best first. Candidates
// without an embedding or with a different dimension are skipped. Equal scores
// keep the order of items.
func FindSimilar[T any](query []float32, items []T, embedding func(T) []float32, opts SearchOptions) []Scored[T] {
	results := make([]Scored[T], 0, len(items))
	for _, item := range items {
		emb := embedding(item)
		if len(emb) == 0 || len(emb) != len(query) {
			continue
		}

		score, err := Similarity(query, emb)
		if err != nil || score < opts.MinScore {
			continue
		}
		results = append(results, Scored[T]{Item: item, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results
}
