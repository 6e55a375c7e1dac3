package contexts

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var seedContexts = []struct {
	content  string
	metadata model.Metadata
}{
	{
		content: "Welcome to ctxkeep. Contexts are short pieces of work state that survive between sessions.",
		metadata: model.Metadata{
			Tags:     []string{"welcome", "example"},
			Priority: model.PriorityLow,
		},
	},
	{
		content: "Active sessions buffer conversation text and are captured as contexts when they go idle or grow old.",
		metadata: model.Metadata{
			Tags:     []string{"session", "example"},
			Priority: model.PriorityMedium,
		},
	},
	{
		content: "Backups snapshot every context into a single versioned file. Restore replaces the whole store.",
		metadata: model.Metadata{
			Tags:     []string{"backup", "example"},
			Priority: model.PriorityHigh,
		},
	},
}

// Init loads every stored context into the index. Calling it again after a
// successful run does nothing.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	stored, err := s.repo.ListContexts(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load contexts")
	}

	index := make(map[model.ContextID]*model.Context, len(stored))
	for _, c := range stored {
		index[c.ID] = c
	}
	s.index = index

	if len(index) == 0 && s.seed {
		if err := s.seedLocked(ctx); err != nil {
			return err
		}
	}

	s.initialized = true
	logging.From(ctx).Debug("context store initialized", "count", len(s.index))
	return nil
}

func (s *Store) seedLocked(ctx context.Context) error {
	for _, seed := range seedContexts {
		c := s.newContext(seed.content, seed.metadata.Copy())
		if err := s.repo.PutContext(ctx, c); err != nil {
			return goerr.Wrap(err, "failed to seed context")
		}
		s.index[c.ID] = c
	}
	logging.From(ctx).Info("seeded example contexts", "count", len(seedContexts))
	return nil
}
