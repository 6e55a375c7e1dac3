package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
)

// Manager keeps one "current" session on top of the capture service and
// buffers conversation turns into it.
type Manager struct {
	capture *capture.Service

	mu      sync.Mutex
	current model.SessionID
}

func New(svc *capture.Service) *Manager {
	return &Manager{capture: svc}
}

// Start ends the current session, capturing it, and registers a new one
func (m *Manager) Start(ctx context.Context, projectPath string) *model.ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endLocked(ctx, true)
	return m.startLocked(ctx, projectPath)
}

func (m *Manager) startLocked(ctx context.Context, projectPath string) *model.ActiveSession {
	sess := m.capture.Register(ctx, model.NewSessionID(), "", projectPath)
	m.current = sess.ID
	return sess
}

func (m *Manager) endLocked(ctx context.Context, captureContent bool) (bool, error) {
	if m.current == "" {
		return false, nil
	}

	id := m.current
	m.current = ""
	captured, err := m.capture.EndSession(ctx, id, captureContent)
	if err != nil {
		logging.From(ctx).Warn("failed to capture session on end", "session_id", id, "error", err)
	}
	return captured, err
}

// Append adds a "<role>: <text>" block to the current session, starting one
// when none is active
func (m *Manager) Append(ctx context.Context, role, text string) *model.ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		m.startLocked(ctx, "")
	}

	block := fmt.Sprintf("%s: %s", role, text)
	content := block
	if sess, ok := m.capture.Get(m.current); ok && sess.Content != "" {
		content = sess.Content + "\n\n" + block
	}

	return m.capture.Update(ctx, m.current, content)
}

// Current returns the current session. It is absent before Start or after
// End, or when the capture service evicted it.
func (m *Manager) Current() (*model.ActiveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return nil, false
	}
	return m.capture.Get(m.current)
}

// Capture commits the current session without ending it
func (m *Manager) Capture(ctx context.Context, metadata *model.Metadata) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return false, nil
	}
	return m.capture.Capture(ctx, m.current, metadata)
}

// End stops the current session and reports whether it was captured
func (m *Manager) End(ctx context.Context, captureContent bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked(ctx, captureContent)
}
