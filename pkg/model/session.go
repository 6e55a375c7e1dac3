package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// recaptureGrowth is the content growth ratio after which a captured session
// is considered not captured anymore.
const recaptureGrowth = 1.2

// ActiveSession is buffered content that has not been committed as a Context yet
type ActiveSession struct {
	ID             SessionID `json:"id"`
	StartTime      time.Time `json:"startTime"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
	Content        string    `json:"content"`
	Captured       bool      `json:"captured"`
	CapturedLength int       `json:"capturedLength,omitempty"`
	ProjectPath    string    `json:"projectPath,omitempty"`
}

func (s *ActiveSession) Copy() *ActiveSession {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// SetContent replaces the buffer. A captured session whose content grew by
// more than 20% since capture is flipped back to not captured.
func (s *ActiveSession) SetContent(content string, now time.Time) {
	s.Content = content
	s.LastUpdateTime = now
	if s.Captured && float64(len(content)) > float64(s.CapturedLength)*recaptureGrowth {
		s.Captured = false
	}
}

// MarkCaptured records the buffer length at capture time
func (s *ActiveSession) MarkCaptured() {
	s.Captured = true
	s.CapturedLength = len(s.Content)
}

// IdleFor returns how long the session has not been updated
func (s *ActiveSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastUpdateTime)
}

// Age returns how long the session has existed
func (s *ActiveSession) Age(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}
