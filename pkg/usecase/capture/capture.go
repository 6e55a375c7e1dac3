package capture

import (
	"context"
	"sort"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const captureSource = "session"

// Capture commits the buffered content of a session as a new context. It
// returns false without error when the session is unknown or its content
// is shorter than MinContentLength.
func (s *Service) Capture(ctx context.Context, id model.SessionID, metadata *model.Metadata) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, nil
	}

	captured, err := s.captureLocked(ctx, sess, metadata)
	if captured {
		s.persistLocked(ctx)
	}
	return captured, err
}

func (s *Service) captureLocked(ctx context.Context, sess *model.ActiveSession, metadata *model.Metadata) (bool, error) {
	if len(sess.Content) < s.cfg.MinContentLength {
		return false, nil
	}

	meta := model.Metadata{
		SessionID:    sess.ID,
		SessionStart: sess.StartTime.UnixMilli(),
		CapturedAt:   s.now.Now().UnixMilli(),
		Source:       captureSource,
		Project:      sess.ProjectPath,
	}
	if metadata != nil {
		meta = meta.Merge(*metadata)
	}

	c, err := s.store.Add(ctx, sess.Content, meta)
	if err != nil {
		return false, goerr.Wrap(err, "failed to store captured session", goerr.V("session_id", sess.ID))
	}
	sess.MarkCaptured()

	logging.From(ctx).Info("session captured", "session_id", sess.ID, "context_id", c.ID, "length", len(sess.Content))
	s.emit(EventCaptured, sess.ID, c.ID)
	return true, nil
}

// CaptureAll captures every uncaptured session that has been idle longer
// than IdleThreshold or has existed longer than MaxSessionAge. Failures are
// logged and skipped. It returns the number of captured sessions.
func (s *Service) CaptureAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now.Now()
	ids := make([]model.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var count int
	for _, id := range ids {
		sess := s.sessions[id]
		if sess.Captured || len(sess.Content) < s.cfg.MinContentLength {
			continue
		}
		if sess.IdleFor(now) <= s.cfg.IdleThreshold && sess.Age(now) <= s.cfg.MaxSessionAge {
			continue
		}

		captured, err := s.captureLocked(ctx, sess, nil)
		if err != nil {
			logging.From(ctx).Error("auto capture failed", "session_id", id, "error", err)
			continue
		}
		if captured {
			count++
		}
	}

	if count > 0 {
		s.persistLocked(ctx)
	}
	return count
}

// EndSession stops tracking a session. With captureContent it first
// captures an uncaptured session. It reports whether a capture happened.
// The session is removed even when the capture fails.
func (s *Service) EndSession(ctx context.Context, id model.SessionID, captureContent bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, nil
	}

	var captured bool
	var err error
	if captureContent && !sess.Captured {
		captured, err = s.captureLocked(ctx, sess, nil)
	}

	delete(s.sessions, id)
	s.persistLocked(ctx)

	logging.From(ctx).Debug("session ended", "session_id", id, "captured", captured)
	s.emit(EventEnded, id, "")
	return captured, err
}
