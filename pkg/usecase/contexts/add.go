package contexts

import (
	"context"
	"strings"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Add creates a context. created and updated are stamped with the current time.
func (s *Store) Add(ctx context.Context, content string, metadata model.Metadata) (*model.Context, error) {
	if strings.TrimSpace(content) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "content is empty")
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	embedding := s.embed(ctx, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.newContext(content, metadata.Copy())
	c.Embedding = embedding

	if err := s.repo.PutContext(ctx, c); err != nil {
		return nil, goerr.Wrap(err, "failed to persist context", goerr.V("id", c.ID))
	}
	s.index[c.ID] = c

	return c.Copy(), nil
}

// newContext allocates an ID not present in the index. Caller holds s.mu.
func (s *Store) newContext(content string, metadata model.Metadata) *model.Context {
	now := s.now.Now()
	id := model.NewContextID(now)
	for {
		if _, exists := s.index[id]; !exists {
			break
		}
		id = model.NewContextID(now)
	}

	ms := now.UnixMilli()
	metadata.Created = ms
	metadata.Updated = ms
	if metadata.Timestamp == 0 {
		metadata.Timestamp = ms
	}

	return &model.Context{
		ID:       id,
		Content:  content,
		Metadata: metadata,
	}
}

// embed returns nil when no embedder is configured or embedding fails
func (s *Store) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("failed to embed content, stored without embedding", "error", err)
		return nil
	}
	return embedding
}
