package service

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
)

func (u *UseCase) CreateContext(ctx context.Context, content string, metadata model.Metadata) (*model.Context, error) {
	return u.store.Add(ctx, content, metadata)
}

func (u *UseCase) GetContext(ctx context.Context, id model.ContextID) (*model.Context, bool) {
	return u.store.Get(ctx, id)
}

// ListContexts returns contexts newest first. limit <= 0 returns all.
func (u *UseCase) ListContexts(ctx context.Context, limit int) []*model.Context {
	all := u.store.GetAll(ctx)
	if limit > 0 && len(all) > limit {
		return all[:limit]
	}
	return all
}

func (u *UseCase) UpdateContext(ctx context.Context, id model.ContextID, content string, metadata *model.Metadata) (*model.Context, error) {
	return u.store.Update(ctx, id, content, metadata)
}

func (u *UseCase) DeleteContext(ctx context.Context, id model.ContextID) (bool, error) {
	return u.store.Delete(ctx, id)
}

func (u *UseCase) SearchContexts(ctx context.Context, query contexts.SearchQuery) []*model.Context {
	return u.store.Search(ctx, query)
}

// SimilarQuery overrides the store's similarity defaults. A nil MinScore
// keeps the configured threshold, so an explicit 0 admits every match.
// MaxResults <= 0 keeps the configured limit.
type SimilarQuery struct {
	MinScore   *float64
	MaxResults int
}

// FindSimilar ranks contexts against text
func (u *UseCase) FindSimilar(ctx context.Context, text string, query SimilarQuery) ([]*contexts.Match, error) {
	opts := u.store.Similarity()
	if query.MinScore != nil {
		opts.MinRelevanceScore = *query.MinScore
	}
	if query.MaxResults > 0 {
		opts.MaxResults = query.MaxResults
	}
	return u.store.FindSimilarText(ctx, text, opts)
}
