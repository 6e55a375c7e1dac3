package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type ContextID string

// NewContextID generates a time-ordered ID. The random suffix keeps two
// contexts created within the same millisecond apart.
func NewContextID(now time.Time) ContextID {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return ContextID(fmt.Sprintf("%d-%s", now.UnixMilli(), suffix))
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Validate checks if the priority is valid. Empty priority is allowed.
func (p Priority) Validate() error {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return nil
	default:
		return goerr.Wrap(ErrInvalidPriority, "unknown priority", goerr.V("priority", p))
	}
}

// Context is a persisted unit of knowledge
type Context struct {
	ID        ContextID `json:"id" firestore:"id"`
	Content   string    `json:"content" firestore:"content"`
	Metadata  Metadata  `json:"metadata" firestore:"metadata"`
	Embedding []float32 `json:"embedding,omitempty" firestore:"-"`
}

// Copy returns a deep copy so that callers cannot mutate indexed records
func (c *Context) Copy() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Metadata = c.Metadata.Copy()
	if c.Embedding != nil {
		cp.Embedding = append([]float32(nil), c.Embedding...)
	}
	return &cp
}

// LastModified returns Updated, falling back to Timestamp and Created.
func (c *Context) LastModified() int64 {
	switch {
	case c.Metadata.Updated != 0:
		return c.Metadata.Updated
	case c.Metadata.Timestamp != 0:
		return c.Metadata.Timestamp
	default:
		return c.Metadata.Created
	}
}

// Metadata holds recognized keys as typed fields. Anything else goes to Extra.
// Timestamps are epoch milliseconds.
type Metadata struct {
	Tags     []string `json:"tags,omitempty" firestore:"tags,omitempty"`
	Priority Priority `json:"priority,omitempty" firestore:"priority,omitempty"`
	Project  string   `json:"project,omitempty" firestore:"project,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty" firestore:"timestamp,omitempty"`
	Created   int64 `json:"created,omitempty" firestore:"created,omitempty"`
	Updated   int64 `json:"updated,omitempty" firestore:"updated,omitempty"`

	SessionID    SessionID `json:"sessionId,omitempty" firestore:"sessionId,omitempty"`
	SessionStart int64     `json:"sessionStart,omitempty" firestore:"sessionStart,omitempty"`
	CapturedAt   int64     `json:"capturedAt,omitempty" firestore:"capturedAt,omitempty"`
	Source       string    `json:"source,omitempty" firestore:"source,omitempty"`

	Extra map[string]any `json:"extra,omitempty" firestore:"extra,omitempty"`
}

// Validate checks the recognized keys
func (m Metadata) Validate() error {
	if err := m.Priority.Validate(); err != nil {
		return err
	}
	for _, tag := range m.Tags {
		if strings.TrimSpace(tag) == "" {
			return goerr.Wrap(ErrValidation, "tag is empty")
		}
	}
	return nil
}

// HasTag reports whether the metadata carries tag, ignoring case
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (m Metadata) Copy() Metadata {
	cp := m
	if m.Tags != nil {
		cp.Tags = append([]string(nil), m.Tags...)
	}
	if m.Extra != nil {
		cp.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			cp.Extra[k] = v
		}
	}
	return cp
}

// Merge returns m overlaid with every non-zero field of patch. Extra is
// merged key by key.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.Copy()
	if patch.Tags != nil {
		out.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Priority != "" {
		out.Priority = patch.Priority
	}
	if patch.Project != "" {
		out.Project = patch.Project
	}
	if patch.Timestamp != 0 {
		out.Timestamp = patch.Timestamp
	}
	if patch.Created != 0 {
		out.Created = patch.Created
	}
	if patch.Updated != 0 {
		out.Updated = patch.Updated
	}
	if patch.SessionID != "" {
		out.SessionID = patch.SessionID
	}
	if patch.SessionStart != 0 {
		out.SessionStart = patch.SessionStart
	}
	if patch.CapturedAt != 0 {
		out.CapturedAt = patch.CapturedAt
	}
	if patch.Source != "" {
		out.Source = patch.Source
	}
	if len(patch.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
