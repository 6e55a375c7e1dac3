package backup

import (
	"context"
	"path"
	"sort"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ListBackups returns every readable backup, newest first
func (m *Manager) ListBackups(ctx context.Context) ([]*model.BackupInfo, error) {
	objects, err := m.storage.List(ctx, backupPrefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list backups")
	}

	infos := make([]*model.BackupInfo, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !isBackupFile(name) {
			continue
		}

		backup, err := m.readBackup(ctx, name)
		if err != nil {
			logging.From(ctx).Warn("skip unreadable backup", "id", name, "error", err)
			continue
		}

		infos = append(infos, &model.BackupInfo{
			Timestamp:    backup.Metadata.Timestamp,
			ContextCount: backup.Metadata.ContextCount,
			Version:      backup.Metadata.Version,
			Filename:     name,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Timestamp != infos[j].Timestamp {
			return infos[i].Timestamp > infos[j].Timestamp
		}
		// same millisecond: a longer name carries a higher sequence suffix
		if len(infos[i].Filename) != len(infos[j].Filename) {
			return len(infos[i].Filename) > len(infos[j].Filename)
		}
		return infos[i].Filename > infos[j].Filename
	})

	return infos, nil
}

// DeleteBackup removes a backup and reports whether it existed
func (m *Manager) DeleteBackup(ctx context.Context, id string) (bool, error) {
	key, err := backupKey(id)
	if err != nil {
		return false, err
	}

	deleted, err := m.storage.Delete(ctx, key)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete backup", goerr.V("id", id))
	}
	if deleted {
		logging.From(ctx).Info("backup deleted", "id", id)
	}
	return deleted, nil
}
