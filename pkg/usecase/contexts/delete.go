package contexts

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Delete removes a context from the repository and the index
func (s *Store) Delete(ctx context.Context, id model.ContextID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, indexed := s.index[id]
	if !indexed {
		return false, nil
	}

	if _, err := s.repo.DeleteContext(ctx, id); err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V("id", id))
	}
	delete(s.index, id)

	return true, nil
}

// ClearAll removes every context. Only restore uses it.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteAllContexts(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear contexts")
	}
	count := len(s.index)
	s.index = make(map[model.ContextID]*model.Context)

	logging.From(ctx).Info("cleared all contexts", "count", count)
	return nil
}

// Import inserts contexts as they are, keeping their IDs and timestamps
func (s *Store) Import(ctx context.Context, contexts []*model.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range contexts {
		if c == nil {
			continue
		}
		cp := c.Copy()
		if err := s.repo.PutContext(ctx, cp); err != nil {
			return goerr.Wrap(err, "failed to import context", goerr.V("id", c.ID))
		}
		s.index[cp.ID] = cp
	}
	return nil
}
