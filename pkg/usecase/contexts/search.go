package contexts

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/ctxkeep/pkg/utils/vector"
)

// SearchQuery selects contexts. Tags must all be present (case-insensitive).
// Limit <= 0 means no limit.
type SearchQuery struct {
	Text  string
	Tags  []string
	Limit int
}

// Search never fails. With an embedder and a text query, results are ranked
// by similarity; otherwise Text is a case-insensitive substring match over
// content and metadata, newest first.
func (s *Store) Search(ctx context.Context, query SearchQuery) []*model.Context {
	candidates := filterByTags(s.snapshot(), query.Tags)

	if query.Text != "" && s.embedder != nil {
		if results, ok := s.searchByEmbedding(ctx, candidates, query); ok {
			return results
		}
	}

	return limit(matchText(ctx, candidates, query.Text), query.Limit)
}

func (s *Store) searchByEmbedding(ctx context.Context, candidates []*model.Context, query SearchQuery) ([]*model.Context, bool) {
	embedding, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		logging.From(ctx).Warn("failed to embed query, fallback to text search", "error", err)
		return nil, false
	}

	maxResults := s.similarity.MaxResults
	if query.Limit > 0 {
		maxResults = query.Limit
	}

	scored := vector.FindSimilar(embedding, candidates, contextEmbedding, vector.SearchOptions{
		MinScore:   s.similarity.MinRelevanceScore,
		MaxResults: maxResults,
	})

	results := make([]*model.Context, len(scored))
	for i, r := range scored {
		results[i] = r.Item
	}
	return results, true
}

func contextEmbedding(c *model.Context) []float32 {
	return c.Embedding
}

func filterByTags(contexts []*model.Context, tags []string) []*model.Context {
	if len(tags) == 0 {
		return contexts
	}

	var filtered []*model.Context
	for _, c := range contexts {
		matched := true
		for _, tag := range tags {
			if !c.Metadata.HasTag(tag) {
				matched = false
				break
			}
		}
		if matched {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func matchText(ctx context.Context, contexts []*model.Context, text string) []*model.Context {
	if text == "" {
		return contexts
	}
	needle := strings.ToLower(text)

	var matched []*model.Context
	for _, c := range contexts {
		if strings.Contains(strings.ToLower(c.Content), needle) {
			matched = append(matched, c)
			continue
		}

		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			logging.From(ctx).Warn("failed to marshal metadata for search", "id", c.ID, "error", err)
			continue
		}
		if strings.Contains(strings.ToLower(string(raw)), needle) {
			matched = append(matched, c)
		}
	}
	return matched
}

func limit(contexts []*model.Context, n int) []*model.Context {
	if n > 0 && len(contexts) > n {
		return contexts[:n]
	}
	return contexts
}
