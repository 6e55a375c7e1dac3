package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// sessionEntry is one (id, session) pair of the session state file
type sessionEntry struct {
	ID      model.SessionID      `json:"id"`
	Session *model.ActiveSession `json:"session"`
}

// SessionFile keeps every active session in a single JSON file
type SessionFile struct {
	path string
}

func NewSessionFile(path string) (*SessionFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create session directory", goerr.V("path", path))
	}
	return &SessionFile{path: path}, nil
}

// LoadSessions returns no sessions and no error when the file does not exist
func (r *SessionFile) LoadSessions(ctx context.Context) ([]*model.ActiveSession, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session file", goerr.V("path", r.path))
	}

	var entries []sessionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session file", goerr.V("path", r.path))
	}

	sessions := make([]*model.ActiveSession, 0, len(entries))
	for _, e := range entries {
		if e.Session == nil {
			continue
		}
		e.Session.ID = e.ID
		sessions = append(sessions, e.Session)
	}
	return sessions, nil
}

func (r *SessionFile) SaveSessions(ctx context.Context, sessions []*model.ActiveSession) error {
	entries := make([]sessionEntry, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, sessionEntry{ID: s.ID, Session: s})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal sessions")
	}

	if err := writeFileAtomic(r.path, data); err != nil {
		return goerr.Wrap(err, "failed to write session file", goerr.V("path", r.path))
	}
	return nil
}
