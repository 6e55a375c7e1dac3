package backup

import (
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// RestoreBackup reads a backup and returns its contexts. The caller decides
// how to apply them; nothing is changed here.
func (m *Manager) RestoreBackup(ctx context.Context, id string) ([]*model.Context, error) {
	backup, err := m.readBackup(ctx, id)
	if err != nil {
		return nil, err
	}

	if backup.Metadata.Version != m.version {
		return nil, goerr.Wrap(model.ErrVersionMismatch, "backup was written by another version",
			goerr.V("id", id),
			goerr.V("backup_version", backup.Metadata.Version),
			goerr.V("current_version", m.version))
	}

	if backup.Contexts == nil {
		return []*model.Context{}, nil
	}
	return backup.Contexts, nil
}

func (m *Manager) readBackup(ctx context.Context, id string) (*model.Backup, error) {
	key, err := backupKey(id)
	if err != nil {
		return nil, err
	}

	r, err := m.storage.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open backup", goerr.V("id", id))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read backup", goerr.V("id", id))
	}

	var backup model.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, goerr.Wrap(err, "failed to parse backup", goerr.V("id", id))
	}
	return &backup, nil
}
