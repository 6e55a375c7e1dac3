package backup_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/usecase/backup"
	"github.com/m-mizutani/ctxkeep/pkg/utils/clock"
	"github.com/m-mizutani/gt"
)

type staticSource struct {
	mu       sync.Mutex
	contexts []*model.Context
	calls    int
}

func (s *staticSource) GetAll(ctx context.Context) []*model.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.contexts
}

func (s *staticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleContexts() []*model.Context {
	return []*model.Context{
		{
			ID:      "1735787045000-aaaaaaaa",
			Content: "first",
			Metadata: model.Metadata{
				Tags:     []string{"a", "b"},
				Priority: model.PriorityHigh,
				Created:  1735787045000,
				Updated:  1735787045000,
				Extra:    map[string]any{"origin": "test"},
			},
		},
		{
			ID:       "1735787046000-bbbbbbbb",
			Content:  "second",
			Metadata: model.Metadata{Project: "proj", Created: 1735787046000, Updated: 1735787047000},
		},
		{
			ID:        "1735787048000-cccccccc",
			Content:   "third",
			Metadata:  model.Metadata{Created: 1735787048000, Updated: 1735787048000},
			Embedding: []float32{0.1, 0.2, 0.3},
		},
	}
}

var baseTime = time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

func newManager(t *testing.T, opts ...backup.Option) (*backup.Manager, adapter.Storage, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	fake := clock.NewFake(baseTime).WithStep(time.Second)
	opts = append([]backup.Option{backup.WithClock(fake.Func())}, opts...)
	return backup.New(storage, opts...), storage, dir
}

func TestCreateBackupFilename(t *testing.T) {
	mgr, _, dir := newManager(t)

	id, err := mgr.CreateBackup(context.Background(), sampleContexts())
	gt.NoError(t, err)
	gt.Equal(t, id, "backup-2025-01-02T03-04-05-678Z.json")

	_, err = os.Stat(filepath.Join(dir, "backups", id))
	gt.NoError(t, err)
}

func TestCreateBackupSameMillisecond(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)
	frozen := clock.NewFake(baseTime)
	mgr := backup.New(storage, backup.WithClock(frozen.Func()))

	first, err := mgr.CreateBackup(ctx, sampleContexts()[:1])
	gt.NoError(t, err)
	second, err := mgr.CreateBackup(ctx, nil)
	gt.NoError(t, err)
	third, err := mgr.CreateBackup(ctx, sampleContexts())
	gt.NoError(t, err)

	gt.Equal(t, first, "backup-2025-01-02T03-04-05-678Z.json")
	gt.Equal(t, second, "backup-2025-01-02T03-04-05-678Z-1.json")
	gt.Equal(t, third, "backup-2025-01-02T03-04-05-678Z-2.json")

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Length(3)
	gt.Equal(t, infos[0].Filename, third)
	gt.Equal(t, infos[1].Filename, second)
	gt.Equal(t, infos[2].Filename, first)

	restored, err := mgr.RestoreBackup(ctx, first)
	gt.NoError(t, err)
	gt.A(t, restored).Length(1)
	gt.Equal(t, restored[0].Content, "first")

	restored, err = mgr.RestoreBackup(ctx, second)
	gt.NoError(t, err)
	gt.A(t, restored).Length(0)

	restored, err = mgr.RestoreBackup(ctx, third)
	gt.NoError(t, err)
	gt.A(t, restored).Length(3)
}

func TestCreateBackupConcurrent(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)
	mgr := backup.New(storage, backup.WithClock(clock.NewFake(baseTime).Func()))

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := mgr.CreateBackup(ctx, sampleContexts())
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		gt.False(t, seen[id])
		seen[id] = true
	}

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Length(n)
}

func TestCreateBackupFileShape(t *testing.T) {
	mgr, _, dir := newManager(t)

	id, err := mgr.CreateBackup(context.Background(), sampleContexts())
	gt.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "backups", id))
	gt.NoError(t, err)

	var doc struct {
		Metadata struct {
			Timestamp    int64  `json:"timestamp"`
			ContextCount int    `json:"contextCount"`
			Version      string `json:"version"`
		} `json:"metadata"`
		Contexts []map[string]any `json:"contexts"`
	}
	gt.NoError(t, json.Unmarshal(raw, &doc))
	gt.Equal(t, doc.Metadata.Timestamp, baseTime.UnixMilli())
	gt.Equal(t, doc.Metadata.ContextCount, 3)
	gt.Equal(t, doc.Metadata.Version, model.BackupFormatVersion)
	gt.A(t, doc.Contexts).Length(3)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newManager(t)

	originals := sampleContexts()
	id, err := mgr.CreateBackup(ctx, originals)
	gt.NoError(t, err)

	restored, err := mgr.RestoreBackup(ctx, id)
	gt.NoError(t, err)
	gt.A(t, restored).Length(3)
	for i := range originals {
		gt.Equal(t, restored[i].ID, originals[i].ID)
		gt.Equal(t, restored[i].Content, originals[i].Content)
		gt.Equal(t, restored[i].Metadata.Tags, originals[i].Metadata.Tags)
		gt.Equal(t, restored[i].Metadata.Priority, originals[i].Metadata.Priority)
		gt.Equal(t, restored[i].Metadata.Project, originals[i].Metadata.Project)
		gt.Equal(t, restored[i].Metadata.Updated, originals[i].Metadata.Updated)
		gt.Equal(t, restored[i].Embedding, originals[i].Embedding)
	}
	gt.Equal(t, restored[0].Metadata.Extra["origin"], any("test"))
}

func TestRoundTripEmpty(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newManager(t)

	id, err := mgr.CreateBackup(ctx, nil)
	gt.NoError(t, err)

	restored, err := mgr.RestoreBackup(ctx, id)
	gt.NoError(t, err)
	gt.A(t, restored).Length(0)
}

func TestRestoreVersionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	old := backup.New(storage, backup.WithVersion("0.9.0"))
	id, err := old.CreateBackup(ctx, sampleContexts())
	gt.NoError(t, err)

	current := backup.New(storage)
	_, err = current.RestoreBackup(ctx, id)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrVersionMismatch))
}

func TestRestoreErrors(t *testing.T) {
	ctx := context.Background()
	mgr, storage, _ := newManager(t)

	t.Run("missing backup", func(t *testing.T) {
		_, err := mgr.RestoreBackup(ctx, "backup-2000-01-01T00-00-00-000Z.json")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("malformed json", func(t *testing.T) {
		w, err := storage.Put(ctx, "backups/backup-broken.json")
		gt.NoError(t, err)
		_, err = io.WriteString(w, "{not json")
		gt.NoError(t, err)
		gt.NoError(t, w.Close())

		_, err = mgr.RestoreBackup(ctx, "backup-broken.json")
		gt.Error(t, err)
		gt.False(t, errors.Is(err, model.ErrNotFound))
		gt.False(t, errors.Is(err, model.ErrVersionMismatch))
	})

	t.Run("path in id", func(t *testing.T) {
		_, err := mgr.RestoreBackup(ctx, "../contexts/x.json")
		gt.True(t, errors.Is(err, model.ErrValidation))
	})
}

func TestListBackups(t *testing.T) {
	ctx := context.Background()
	mgr, storage, _ := newManager(t)

	first, err := mgr.CreateBackup(ctx, sampleContexts()[:1])
	gt.NoError(t, err)
	second, err := mgr.CreateBackup(ctx, sampleContexts())
	gt.NoError(t, err)

	// unreadable and unrelated files are ignored
	for key, body := range map[string]string{
		"backups/backup-corrupt.json": "{",
		"backups/notes.txt":           "hello",
	} {
		w, err := storage.Put(ctx, key)
		gt.NoError(t, err)
		_, err = io.WriteString(w, body)
		gt.NoError(t, err)
		gt.NoError(t, w.Close())
	}

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Length(2)
	gt.Equal(t, infos[0].Filename, second)
	gt.Equal(t, infos[0].ContextCount, 3)
	gt.Equal(t, infos[0].Version, model.BackupFormatVersion)
	gt.Equal(t, infos[1].Filename, first)
	gt.Equal(t, infos[1].ContextCount, 1)
	gt.True(t, infos[0].Timestamp > infos[1].Timestamp)
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newManager(t)

	id, err := mgr.CreateBackup(ctx, sampleContexts())
	gt.NoError(t, err)

	deleted, err := mgr.DeleteBackup(ctx, id)
	gt.NoError(t, err)
	gt.True(t, deleted)

	deleted, err = mgr.DeleteBackup(ctx, id)
	gt.NoError(t, err)
	gt.False(t, deleted)

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Length(0)
}

func TestSweepRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	dir := t.TempDir()
	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	const retentionDays = 7
	mgr := backup.New(storage,
		backup.WithClock(func() time.Time { return now }),
		backup.WithConfig(model.BackupConfig{RetentionPeriodDays: retentionDays}),
	)

	ages := map[string]int{
		"backup-2025-01-01T00-00-00-000Z.json": 0,
		"backup-2025-01-02T00-00-00-000Z.json": retentionDays - 1,
		"backup-2025-01-03T00-00-00-000Z.json": retentionDays + 1,
	}
	for name, days := range ages {
		w, err := storage.Put(ctx, "backups/"+name)
		gt.NoError(t, err)
		// the embedded timestamp says "new" for every file; only mtime counts
		gt.NoError(t, json.NewEncoder(w).Encode(model.Backup{
			Metadata: model.BackupMetadata{Timestamp: now.UnixMilli(), Version: model.BackupFormatVersion},
		}))
		gt.NoError(t, w.Close())

		mtime := now.Add(-time.Duration(days) * 24 * time.Hour)
		gt.NoError(t, os.Chtimes(filepath.Join(dir, "backups", name), mtime, mtime))
	}

	removed, err := mgr.SweepRetention(ctx)
	gt.NoError(t, err)
	gt.Equal(t, removed, 1)

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Length(2)
	for _, info := range infos {
		gt.NotEqual(t, info.Filename, "backup-2025-01-03T00-00-00-000Z.json")
	}
}

func TestSweepRetentionDisabled(t *testing.T) {
	ctx := context.Background()
	mgr, _, dir := newManager(t, backup.WithConfig(model.BackupConfig{RetentionPeriodDays: 0}))

	id, err := mgr.CreateBackup(ctx, sampleContexts())
	gt.NoError(t, err)
	old := time.Now().Add(-365 * 24 * time.Hour)
	gt.NoError(t, os.Chtimes(filepath.Join(dir, "backups", id), old, old))

	removed, err := mgr.SweepRetention(ctx)
	gt.NoError(t, err)
	gt.Equal(t, removed, 0)
}

func TestBackupFromSource(t *testing.T) {
	ctx := context.Background()

	t.Run("with source", func(t *testing.T) {
		source := &staticSource{contexts: sampleContexts()}
		mgr, _, _ := newManager(t, backup.WithSource(source))

		id, err := mgr.Backup(ctx)
		gt.NoError(t, err)

		restored, err := mgr.RestoreBackup(ctx, id)
		gt.NoError(t, err)
		gt.A(t, restored).Length(3)
	})

	t.Run("without source", func(t *testing.T) {
		mgr, _, _ := newManager(t)
		_, err := mgr.Backup(ctx)
		gt.Error(t, err)
	})
}

func TestSetConfigValidation(t *testing.T) {
	mgr, _, _ := newManager(t)

	err := mgr.SetConfig(model.BackupConfig{AutoBackupEnabled: true, BackupFrequency: 0, RetentionPeriodDays: 1})
	gt.True(t, errors.Is(err, model.ErrValidation))

	err = mgr.SetConfig(model.BackupConfig{RetentionPeriodDays: -1})
	gt.True(t, errors.Is(err, model.ErrValidation))

	cfg := model.BackupConfig{AutoBackupEnabled: false, RetentionPeriodDays: 3}
	gt.NoError(t, mgr.SetConfig(cfg))
	gt.Equal(t, mgr.Config(), cfg)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()
	source := &staticSource{contexts: sampleContexts()}
	dir := t.TempDir()
	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	// the fake clock gives every backup a distinct filename
	fake := clock.NewFake(baseTime).WithStep(time.Second)
	mgr := backup.New(storage,
		backup.WithSource(source),
		backup.WithClock(fake.Func()),
		backup.WithWarmup(time.Millisecond),
		backup.WithConfig(model.BackupConfig{
			AutoBackupEnabled:   true,
			BackupFrequency:     20 * time.Millisecond,
			RetentionPeriodDays: 30,
		}),
	)

	mgr.Start(ctx)
	t.Cleanup(mgr.Stop)
	gt.True(t, mgr.Running())

	waitFor(t, 2*time.Second, func() bool { return source.Calls() >= 3 })

	infos, err := mgr.ListBackups(ctx)
	gt.NoError(t, err)
	gt.A(t, infos).Longer(2)

	t.Run("disabling stops the scheduler and keeps backups", func(t *testing.T) {
		gt.NoError(t, mgr.SetConfig(model.BackupConfig{AutoBackupEnabled: false, RetentionPeriodDays: 30}))
		gt.False(t, mgr.Running())

		calls := source.Calls()
		time.Sleep(60 * time.Millisecond)
		gt.Equal(t, source.Calls(), calls)

		after, err := mgr.ListBackups(ctx)
		gt.NoError(t, err)
		gt.Number(t, len(after)).GreaterOrEqual(len(infos))
	})

	t.Run("enabling again restarts it", func(t *testing.T) {
		gt.NoError(t, mgr.SetConfig(model.BackupConfig{
			AutoBackupEnabled:   true,
			BackupFrequency:     20 * time.Millisecond,
			RetentionPeriodDays: 30,
		}))
		gt.True(t, mgr.Running())

		calls := source.Calls()
		waitFor(t, 2*time.Second, func() bool { return source.Calls() > calls })
	})

	mgr.Stop()
	gt.False(t, mgr.Running())
}

func TestSchedulerKeepsRunningAfterFailure(t *testing.T) {
	ctx := context.Background()
	storage, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)

	fails := &failingStorage{Storage: storage}
	source := &staticSource{contexts: sampleContexts()}
	fake := clock.NewFake(baseTime).WithStep(time.Second)
	mgr := backup.New(fails,
		backup.WithSource(source),
		backup.WithClock(fake.Func()),
		backup.WithWarmup(time.Millisecond),
		backup.WithConfig(model.BackupConfig{AutoBackupEnabled: true, BackupFrequency: 10 * time.Millisecond}),
	)

	mgr.Start(ctx)
	defer mgr.Stop()

	waitFor(t, 2*time.Second, func() bool { return source.Calls() >= 3 })
}

type failingStorage struct {
	adapter.Storage
}

func (s *failingStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return nil, errors.New("storage unavailable")
}
