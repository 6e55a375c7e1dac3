package capture

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/repository"
	"github.com/m-mizutani/ctxkeep/pkg/utils/clock"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Config controls capture thresholds and the auto-capture schedule
type Config struct {
	MinContentLength   int           `yaml:"min_content_length"`
	MaxSessionsToTrack int           `yaml:"max_sessions_to_track"`
	IdleThreshold      time.Duration `yaml:"idle_threshold"`
	MaxSessionAge      time.Duration `yaml:"max_session_age"`
	CaptureInterval    time.Duration `yaml:"capture_interval"`
	Warmup             time.Duration `yaml:"warmup"`
}

func DefaultConfig() Config {
	return Config{
		MinContentLength:   100,
		MaxSessionsToTrack: 10,
		IdleThreshold:      60 * time.Second,
		MaxSessionAge:      30 * time.Minute,
		CaptureInterval:    5 * time.Minute,
		Warmup:             10 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.MinContentLength < 0 {
		return goerr.Wrap(model.ErrValidation, "min content length must not be negative",
			goerr.V("min_content_length", c.MinContentLength))
	}
	if c.MaxSessionsToTrack <= 0 {
		return goerr.Wrap(model.ErrValidation, "max sessions to track must be positive",
			goerr.V("max_sessions_to_track", c.MaxSessionsToTrack))
	}
	if c.IdleThreshold <= 0 || c.MaxSessionAge <= 0 {
		return goerr.Wrap(model.ErrValidation, "idle threshold and max session age must be positive",
			goerr.V("idle_threshold", c.IdleThreshold), goerr.V("max_session_age", c.MaxSessionAge))
	}
	if c.CaptureInterval <= 0 {
		return goerr.Wrap(model.ErrValidation, "capture interval must be positive",
			goerr.V("capture_interval", c.CaptureInterval))
	}
	return nil
}

// ContextWriter receives captured session content
type ContextWriter interface {
	Add(ctx context.Context, content string, metadata model.Metadata) (*model.Context, error)
}

// Service tracks active sessions and commits them into the context store
type Service struct {
	store  ContextWriter
	repo   repository.SessionRepository
	cfg    Config
	now    clock.Func
	events chan<- Event

	mu       sync.Mutex
	sessions map[model.SessionID]*model.ActiveSession

	schedMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option is a functional option for Service
type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithClock(now clock.Func) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRepository persists the session set after every change
func WithRepository(repo repository.SessionRepository) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithEvents publishes lifecycle events to ch. Events are dropped when ch is full.
func WithEvents(ch chan<- Event) Option {
	return func(s *Service) {
		s.events = ch
	}
}

func New(store ContextWriter, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cfg:      DefaultConfig(),
		sessions: make(map[model.SessionID]*model.ActiveSession),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

// Load replaces tracked sessions with the persisted set. An unreadable
// session file is logged and treated as empty.
func (s *Service) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	loaded, err := s.repo.LoadSessions(ctx)
	if err != nil {
		logging.From(ctx).Warn("failed to load sessions, starting with none", "error", err)
		loaded = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[model.SessionID]*model.ActiveSession, len(loaded))
	for _, sess := range loaded {
		if sess.ID == "" {
			continue
		}
		s.sessions[sess.ID] = sess
	}
	s.evictLocked(ctx, "")

	logging.From(ctx).Debug("sessions loaded", "count", len(s.sessions))
	return nil
}

// Get returns a copy of a tracked session
func (s *Service) Get(id model.SessionID) (*model.ActiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Copy(), true
}

// List returns copies of every tracked session, most recently updated first
func (s *Service) List() []*model.ActiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Service) listLocked() []*model.ActiveSession {
	sessions := make([]*model.ActiveSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess.Copy())
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastUpdateTime.Equal(b.LastUpdateTime) {
			return a.LastUpdateTime.After(b.LastUpdateTime)
		}
		return a.ID < b.ID
	})
	return sessions
}

// persistLocked saves the session set. Failures are logged only.
func (s *Service) persistLocked(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveSessions(ctx, s.listLocked()); err != nil {
		logging.From(ctx).Warn("failed to save sessions", "error", err)
	}
}

// evictLocked drops least recently updated sessions until within bound.
// The session keep is never evicted; pass "" when there is none.
func (s *Service) evictLocked(ctx context.Context, keep model.SessionID) {
	for len(s.sessions) > s.cfg.MaxSessionsToTrack {
		var oldest *model.ActiveSession
		for _, sess := range s.sessions {
			if sess.ID == keep {
				continue
			}
			if oldest == nil || sess.LastUpdateTime.Before(oldest.LastUpdateTime) ||
				(sess.LastUpdateTime.Equal(oldest.LastUpdateTime) && sess.ID < oldest.ID) {
				oldest = sess
			}
		}
		if oldest == nil {
			return
		}

		delete(s.sessions, oldest.ID)
		logging.From(ctx).Info("session evicted", "session_id", oldest.ID, "captured", oldest.Captured)
		s.emit(EventEvicted, oldest.ID, "")
	}
}
