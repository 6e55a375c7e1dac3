package cli_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/cli"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/repository"
	"github.com/m-mizutani/gt"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := cli.LoadSettings("")
	gt.NoError(t, err)
	gt.True(t, s.Backup.AutoBackupEnabled)
	gt.Equal(t, s.Backup.BackupFrequency, 24*time.Hour)
	gt.Equal(t, s.Backup.RetentionPeriodDays, 30)
	gt.Equal(t, s.Capture.MinContentLength, 100)
	gt.Equal(t, s.Similarity.MinRelevanceScore, 0.7)
}

func TestLoadSettingsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`
backup:
  backup_frequency: 6h
  retention_period_days: 7
capture:
  idle_threshold: 2m
similarity:
  min_relevance_score: 0.5
`), 0o600))

	s, err := cli.LoadSettings(path)
	gt.NoError(t, err)
	gt.Equal(t, s.Backup.BackupFrequency, 6*time.Hour)
	gt.Equal(t, s.Backup.RetentionPeriodDays, 7)
	gt.True(t, s.Backup.AutoBackupEnabled)
	gt.Equal(t, s.Capture.IdleThreshold, 2*time.Minute)
	gt.Equal(t, s.Capture.MinContentLength, 100)
	gt.Equal(t, s.Similarity.MinRelevanceScore, 0.5)
	gt.Equal(t, s.Similarity.MaxResults, 10)
}

func TestLoadSettingsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("backup:\n  retention_period_days: -1\n"), 0o600))

	_, err := cli.LoadSettings(path)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))

	_, err = cli.LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.Error(t, err)
}

func run(t *testing.T, args ...string) {
	t.Helper()
	argv := append([]string{"ctxkeep"}, args...)
	if err := cli.Run(context.Background(), argv); err != nil {
		t.Fatalf("run %v failed: %s", args, err.Message)
	}
}

func TestRunContextBackupAndSession(t *testing.T) {
	dir := t.TempDir()

	run(t, "context", "add", "--content", "Go channels carry values between goroutines", "--tag", "go", "-d", dir)
	run(t, "context", "add", "--content", "Badger is an embeddable key value store", "--priority", "high", "-d", dir)

	repo, err := repository.NewFileSystem(filepath.Join(dir, "contexts"))
	gt.NoError(t, err)
	stored, err := repo.ListContexts(context.Background())
	gt.NoError(t, err)
	gt.A(t, stored).Length(2)

	run(t, "backup", "create", "-d", dir)

	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)
	objects, err := storage.List(context.Background(), "backups/")
	gt.NoError(t, err)
	gt.A(t, objects).Length(1)

	run(t, "session", "register", "--id", "s1", "--content", "draft notes", "--project", "/work/app", "-d", dir)

	sessions, err := repository.NewSessionFile(filepath.Join(dir, "sessions.json"))
	gt.NoError(t, err)
	loaded, err := sessions.LoadSessions(context.Background())
	gt.NoError(t, err)
	gt.A(t, loaded).Length(1)
	gt.Equal(t, loaded[0].ID, model.SessionID("s1"))
	gt.Equal(t, loaded[0].ProjectPath, "/work/app")

	run(t, "session", "end", "--no-capture", "-d", dir, "s1")
	loaded, err = sessions.LoadSessions(context.Background())
	gt.NoError(t, err)
	gt.A(t, loaded).Length(0)
}

func TestRunRejectsUnknownStore(t *testing.T) {
	err := cli.Run(context.Background(), []string{"ctxkeep", "context", "list", "--store", "nope", "-d", t.TempDir()})
	gt.NotNil(t, err)
	gt.Equal(t, err.Code, 1)
}
