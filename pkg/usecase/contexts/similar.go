package contexts

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/vector"
	"github.com/m-mizutani/goerr/v2"
)

// Match is a context scored against a query embedding
type Match struct {
	Context *model.Context `json:"context"`
	Score   float64        `json:"score"`
}

// Similarity returns the options used when callers do not pass their own
func (s *Store) Similarity() SimilarityOptions {
	return s.similarity
}

// FindSimilar ranks every context carrying an embedding against embedding.
// Contexts scoring below MinRelevanceScore are dropped. MaxResults <= 0 falls
// back to the store default.
func (s *Store) FindSimilar(ctx context.Context, embedding []float32, opts SimilarityOptions) ([]*Match, error) {
	if len(embedding) == 0 {
		return nil, goerr.Wrap(model.ErrValidation, "query embedding is empty")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = s.similarity.MaxResults
	}

	scored := vector.FindSimilar(embedding, s.snapshot(), contextEmbedding, vector.SearchOptions{
		MinScore:   opts.MinRelevanceScore,
		MaxResults: opts.MaxResults,
	})

	matches := make([]*Match, len(scored))
	for i, r := range scored {
		matches[i] = &Match{Context: r.Item, Score: r.Score}
	}
	return matches, nil
}

// FindSimilarText embeds text and ranks contexts against it
func (s *Store) FindSimilarText(ctx context.Context, text string, opts SimilarityOptions) ([]*Match, error) {
	if s.embedder == nil {
		return nil, goerr.Wrap(model.ErrNoEmbedder, "similarity search needs an embedder")
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	return s.FindSimilar(ctx, embedding, opts)
}
