package service

import (
	"context"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// CreateBackup snapshots every context and returns the backup ID
func (u *UseCase) CreateBackup(ctx context.Context) (string, error) {
	return u.backups.CreateBackup(ctx, u.store.GetAll(ctx))
}

func (u *UseCase) ListBackups(ctx context.Context) ([]*model.BackupInfo, error) {
	return u.backups.ListBackups(ctx)
}

// RestoreBackup replaces every context with the ones in backup id. The store
// is cleared only after the backup was read and accepted.
func (u *UseCase) RestoreBackup(ctx context.Context, id string) (int, error) {
	restored, err := u.backups.RestoreBackup(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := u.store.ClearAll(ctx); err != nil {
		return 0, goerr.Wrap(err, "failed to clear store before restore", goerr.V("id", id))
	}
	if err := u.store.Import(ctx, restored); err != nil {
		return 0, goerr.Wrap(err, "failed to import restored contexts", goerr.V("id", id))
	}

	logging.From(ctx).Info("backup restored", "id", id, "count", len(restored))
	return len(restored), nil
}

func (u *UseCase) DeleteBackup(ctx context.Context, id string) (bool, error) {
	return u.backups.DeleteBackup(ctx, id)
}

// SweepBackups runs the retention sweep now
func (u *UseCase) SweepBackups(ctx context.Context) (int, error) {
	return u.backups.SweepRetention(ctx)
}

func (u *UseCase) SetBackupConfig(cfg model.BackupConfig) error {
	return u.backups.SetConfig(cfg)
}

func (u *UseCase) BackupConfig() model.BackupConfig {
	return u.backups.Config()
}
