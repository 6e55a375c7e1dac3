package contexts

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
)

func (s *Store) Get(ctx context.Context, id model.ContextID) (*model.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return c.Copy(), true
}

// GetAll returns every context, most recently updated first
func (s *Store) GetAll(ctx context.Context) []*model.Context {
	return s.snapshot()
}
