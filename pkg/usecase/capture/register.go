package capture

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
)

// Register starts tracking a session, replacing any session with the same
// ID. An empty id gets a generated one.
func (s *Service) Register(ctx context.Context, id model.SessionID, content, projectPath string) *model.ActiveSession {
	if id == "" {
		id = model.NewSessionID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.registerLocked(ctx, id, content, projectPath)
	s.persistLocked(ctx)
	return sess.Copy()
}

func (s *Service) registerLocked(ctx context.Context, id model.SessionID, content, projectPath string) *model.ActiveSession {
	now := s.now.Now()
	sess := &model.ActiveSession{
		ID:             id,
		StartTime:      now,
		LastUpdateTime: now,
		Content:        content,
		ProjectPath:    projectPath,
	}
	s.sessions[id] = sess

	logging.From(ctx).Debug("session registered", "session_id", id, "project", projectPath)
	s.emit(EventRegistered, id, "")

	s.evictLocked(ctx, id)
	return sess
}

// Update replaces the buffered content of a session, registering it when
// unknown. A captured session whose content grew materially becomes
// capturable again.
func (s *Service) Update(ctx context.Context, id model.SessionID, content string) *model.ActiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = s.registerLocked(ctx, id, content, "")
	} else {
		sess.SetContent(content, s.now.Now())
	}

	s.persistLocked(ctx)
	return sess.Copy()
}
