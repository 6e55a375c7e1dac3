package service

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/usecase/backup"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/capture"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/contexts"
)

// UseCase exposes the outward verbs over the store, backup manager and
// capture service. Transports (MCP, CLI) call only this.
type UseCase struct {
	store   *contexts.Store
	backups *backup.Manager
	capture *capture.Service
}

func New(store *contexts.Store, backups *backup.Manager, capture *capture.Service) *UseCase {
	return &UseCase{
		store:   store,
		backups: backups,
		capture: capture,
	}
}

// Start runs the backup and auto-capture schedulers until Stop
func (u *UseCase) Start(ctx context.Context) {
	u.backups.Start(ctx)
	u.capture.Start(ctx)
}

func (u *UseCase) Stop() {
	u.capture.Stop()
	u.backups.Stop()
}
