package backup

import (
	"context"
	"path"

	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SweepRetention deletes backups whose storage modification time is older
// than the retention period. The timestamp recorded inside a backup is not
// consulted. A zero retention period keeps everything.
func (m *Manager) SweepRetention(ctx context.Context) (int, error) {
	retention := m.Config().Retention()
	if retention <= 0 {
		return 0, nil
	}
	cutoff := m.now.Now().Add(-retention)

	objects, err := m.storage.List(ctx, backupPrefix)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list backups")
	}

	var removed int
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !isBackupFile(name) || !obj.ModTime.Before(cutoff) {
			continue
		}

		if _, err := m.storage.Delete(ctx, obj.Key); err != nil {
			return removed, goerr.Wrap(err, "failed to delete expired backup", goerr.V("id", name))
		}
		removed++
		logging.From(ctx).Info("expired backup removed", "id", name, "modified", obj.ModTime)
	}

	return removed, nil
}
