package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// backupFilename renders t as backup-YYYY-MM-DDTHH-MM-SS-mmmZ.json. A
// non-zero seq is appended as -<seq> before the extension.
func backupFilename(t time.Time, seq int) string {
	t = t.UTC()
	suffix := ""
	if seq > 0 {
		suffix = fmt.Sprintf("-%d", seq)
	}
	return fmt.Sprintf("%s%s-%03dZ%s%s",
		backupFilePrefix, t.Format("2006-01-02T15-04-05"), t.Nanosecond()/int(time.Millisecond), suffix, backupFileExtension)
}

// allocateKey returns the first backup name for t that is not stored yet.
// Callers hold createMu until the object is committed.
func (m *Manager) allocateKey(ctx context.Context, t time.Time) (string, string, error) {
	for seq := 0; seq < maxNameAttempts; seq++ {
		id := backupFilename(t, seq)
		key, err := backupKey(id)
		if err != nil {
			return "", "", err
		}

		r, err := m.storage.Get(ctx, key)
		if errors.Is(err, model.ErrNotFound) {
			return id, key, nil
		}
		if err != nil {
			return "", "", goerr.Wrap(err, "failed to check backup name", goerr.V("id", id))
		}
		_ = r.Close()
	}

	return "", "", goerr.New("no free backup name", goerr.V("time", t), goerr.V("attempts", maxNameAttempts))
}

// CreateBackup writes contexts into a new backup and returns its ID (the
// filename). An existing backup is never overwritten.
func (m *Manager) CreateBackup(ctx context.Context, contexts []*model.Context) (string, error) {
	now := m.now.Now()
	if contexts == nil {
		contexts = []*model.Context{}
	}

	backup := &model.Backup{
		Metadata: model.BackupMetadata{
			Timestamp:    now.UnixMilli(),
			ContextCount: len(contexts),
			Version:      m.version,
		},
		Contexts: contexts,
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal backup")
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	id, key, err := m.allocateKey(ctx, now)
	if err != nil {
		return "", err
	}

	w, err := m.storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open backup for writing", goerr.V("id", id))
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write backup", goerr.V("id", id))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to commit backup", goerr.V("id", id))
	}

	logging.From(ctx).Info("backup created", "id", id, "count", len(contexts))
	return id, nil
}

// Backup snapshots every context of the configured source
func (m *Manager) Backup(ctx context.Context) (string, error) {
	if m.source == nil {
		return "", goerr.New("backup source is not configured")
	}
	return m.CreateBackup(ctx, m.source.GetAll(ctx))
}
