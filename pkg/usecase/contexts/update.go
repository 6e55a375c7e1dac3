package contexts

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Update replaces content and merges metadata into the stored record. An
// empty content keeps the current one, and a nil metadata keeps every field.
// It returns nil without error when id does not exist.
func (s *Store) Update(ctx context.Context, id model.ContextID, content string, metadata *model.Metadata) (*model.Context, error) {
	if metadata != nil {
		if err := metadata.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	current, ok := s.index[id]
	var prevContent string
	if ok {
		prevContent = current.Content
	}
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var embedding []float32
	contentChanged := content != "" && content != prevContent
	if contentChanged {
		embedding = s.embed(ctx, content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok = s.index[id]
	if !ok {
		return nil, nil
	}

	updated := current.Copy()
	if content != "" {
		updated.Content = content
	}
	if contentChanged {
		updated.Embedding = embedding
	}
	if metadata != nil {
		updated.Metadata = updated.Metadata.Merge(*metadata)
	}

	// created and updated are owned by the store
	updated.Metadata.Created = current.Metadata.Created
	now := s.now.Now().UnixMilli()
	if prev := current.Metadata.Updated; now <= prev {
		now = prev + 1
	}
	updated.Metadata.Updated = now

	if err := s.repo.PutContext(ctx, updated); err != nil {
		return nil, goerr.Wrap(err, "failed to persist context", goerr.V("id", id))
	}
	s.index[id] = updated

	return updated.Copy(), nil
}
