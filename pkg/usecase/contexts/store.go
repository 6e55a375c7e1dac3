package contexts

import (
	"sort"
	"sync"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/repository"
	"github.com/m-mizutani/ctxkeep/pkg/utils/clock"
)

// SimilarityOptions controls embedding based retrieval
type SimilarityOptions struct {
	MinRelevanceScore float64 `yaml:"min_relevance_score"`
	MaxResults        int     `yaml:"max_results"`
}

func DefaultSimilarityOptions() SimilarityOptions {
	return SimilarityOptions{
		MinRelevanceScore: 0.7,
		MaxResults:        10,
	}
}

// Store owns every Context. Writes go to the repository first and the
// in-memory index is updated only after the repository accepted them.
type Store struct {
	repo       repository.ContextRepository
	embedder   adapter.Embedder
	now        clock.Func
	similarity SimilarityOptions
	seed       bool

	mu          sync.RWMutex
	index       map[model.ContextID]*model.Context
	initialized bool
}

// Option is a functional option for Store
type Option func(*Store)

// WithEmbedder enables embedding on write and embedding mode search
func WithEmbedder(embedder adapter.Embedder) Option {
	return func(s *Store) {
		s.embedder = embedder
	}
}

func WithClock(now clock.Func) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithSimilarity(opts SimilarityOptions) Option {
	return func(s *Store) {
		s.similarity = opts
	}
}

// WithSeed makes Init write example contexts into an empty repository
func WithSeed(seed bool) Option {
	return func(s *Store) {
		s.seed = seed
	}
}

// New creates a Store. Call Init before use.
func New(repo repository.ContextRepository, opts ...Option) *Store {
	s := &Store{
		repo:       repo,
		similarity: DefaultSimilarityOptions(),
		index:      make(map[model.ContextID]*model.Context),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Count returns the number of indexed contexts
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// snapshot returns copies of every indexed context, newest first
func (s *Store) snapshot() []*model.Context {
	s.mu.RLock()
	contexts := make([]*model.Context, 0, len(s.index))
	for _, c := range s.index {
		contexts = append(contexts, c.Copy())
	}
	s.mu.RUnlock()

	sortNewestFirst(contexts)
	return contexts
}

// sortNewestFirst orders by last modification, ID breaks ties
func sortNewestFirst(contexts []*model.Context) {
	sort.SliceStable(contexts, func(i, j int) bool {
		a, b := contexts[i].LastModified(), contexts[j].LastModified()
		if a != b {
			return a > b
		}
		return contexts[i].ID > contexts[j].ID
	})
}
