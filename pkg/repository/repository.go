package repository

import (
	"context"
	"strings"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ContextRepository persists Context records, one file/row/document per ID
type ContextRepository interface {
	// PutContext creates or replaces a context
	PutContext(ctx context.Context, c *model.Context) error

	// GetContext retrieves a context by ID. Returns model.ErrNotFound when absent.
	GetContext(ctx context.Context, id model.ContextID) (*model.Context, error)

	// ListContexts retrieves every stored context in storage order
	ListContexts(ctx context.Context) ([]*model.Context, error)

	// DeleteContext removes a context and reports whether it existed
	DeleteContext(ctx context.Context, id model.ContextID) (bool, error)

	// DeleteAllContexts removes every context
	DeleteAllContexts(ctx context.Context) error

	Close() error
}

// SessionRepository persists the whole set of active sessions at once
type SessionRepository interface {
	LoadSessions(ctx context.Context) ([]*model.ActiveSession, error)
	SaveSessions(ctx context.Context, sessions []*model.ActiveSession) error
}

func validateID(id model.ContextID) error {
	if id == "" {
		return goerr.Wrap(model.ErrValidation, "context id is empty")
	}
	if strings.ContainsAny(string(id), `/\`) || strings.HasPrefix(string(id), ".") {
		return goerr.Wrap(model.ErrValidation, "context id is not a valid key", goerr.V("id", id))
	}
	return nil
}
