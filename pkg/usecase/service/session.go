package service

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
)

func (u *UseCase) RegisterSession(ctx context.Context, id model.SessionID, content, projectPath string) *model.ActiveSession {
	return u.capture.Register(ctx, id, content, projectPath)
}

func (u *UseCase) UpdateSession(ctx context.Context, id model.SessionID, content string) *model.ActiveSession {
	return u.capture.Update(ctx, id, content)
}

func (u *UseCase) CaptureSession(ctx context.Context, id model.SessionID, metadata *model.Metadata) (bool, error) {
	return u.capture.Capture(ctx, id, metadata)
}

func (u *UseCase) CaptureAllSessions(ctx context.Context) int {
	return u.capture.CaptureAll(ctx)
}

func (u *UseCase) EndSession(ctx context.Context, id model.SessionID, captureContent bool) (bool, error) {
	return u.capture.EndSession(ctx, id, captureContent)
}

func (u *UseCase) GetActiveSessions(ctx context.Context) []*model.ActiveSession {
	return u.capture.List()
}
