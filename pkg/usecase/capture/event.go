package capture

import (
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
)

type EventType string

const (
	EventRegistered EventType = "registered"
	EventCaptured   EventType = "captured"
	EventEvicted    EventType = "evicted"
	EventEnded      EventType = "ended"
)

// Event reports a session lifecycle change. ContextID is set for captures.
type Event struct {
	Type      EventType
	SessionID model.SessionID
	ContextID model.ContextID
	Time      time.Time
}

func (s *Service) emit(typ EventType, id model.SessionID, contextID model.ContextID) {
	if s.events == nil {
		return
	}

	ev := Event{
		Type:      typ,
		SessionID: id,
		ContextID: contextID,
		Time:      s.now.Now(),
	}
	select {
	case s.events <- ev:
	default:
	}
}
