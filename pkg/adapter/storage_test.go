package adapter_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxkeep/pkg/adapter"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/gt"
)

func writeObject(t *testing.T, s adapter.Storage, key, body string) {
	t.Helper()
	w, err := s.Put(context.Background(), key)
	gt.NoError(t, err)
	_, err = io.WriteString(w, body)
	gt.NoError(t, err)
	gt.NoError(t, w.Close())
}

func readObject(t *testing.T, s adapter.Storage, key string) string {
	t.Helper()
	r, err := s.Get(context.Background(), key)
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	return string(data)
}

func testStorage(t *testing.T, s adapter.Storage, prefix string) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		key := prefix + "/a.json"
		writeObject(t, s, key, `{"a":1}`)
		gt.Equal(t, readObject(t, s, key), `{"a":1}`)
	})

	t.Run("get missing object", func(t *testing.T) {
		_, err := s.Get(ctx, prefix+"/missing.json")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("list by prefix", func(t *testing.T) {
		writeObject(t, s, prefix+"/list/1.json", "1")
		writeObject(t, s, prefix+"/list/2.json", "22")
		writeObject(t, s, prefix+"/other/3.json", "333")

		objects, err := s.List(ctx, prefix+"/list/")
		gt.NoError(t, err)
		gt.A(t, objects).Length(2)
		for _, obj := range objects {
			gt.S(t, obj.Key).Contains(prefix + "/list/")
			gt.False(t, obj.ModTime.IsZero())
		}
	})

	t.Run("delete", func(t *testing.T) {
		key := prefix + "/del.json"
		writeObject(t, s, key, "x")

		deleted, err := s.Delete(ctx, key)
		gt.NoError(t, err)
		gt.True(t, deleted)

		deleted, err = s.Delete(ctx, key)
		gt.NoError(t, err)
		gt.False(t, deleted)
	})
}

func TestLocalStorage(t *testing.T) {
	s, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)
	testStorage(t, s, "backups")
}

func TestLocalStorageUncommittedWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	w, err := s.Put(context.Background(), "backups/pending.json")
	gt.NoError(t, err)
	_, err = io.WriteString(w, "partial")
	gt.NoError(t, err)

	// Not visible before Close
	_, err = s.Get(context.Background(), "backups/pending.json")
	gt.True(t, errors.Is(err, model.ErrNotFound))

	objects, err := s.List(context.Background(), "backups/")
	gt.NoError(t, err)
	gt.A(t, objects).Length(0)

	gt.NoError(t, w.Close())
	gt.Equal(t, readObject(t, s, "backups/pending.json"), "partial")
}

func TestLocalStorageModTime(t *testing.T) {
	dir := t.TempDir()
	s, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	writeObject(t, s, "backups/old.json", "old")
	old := time.Now().Add(-72 * time.Hour)
	gt.NoError(t, os.Chtimes(filepath.Join(dir, "backups", "old.json"), old, old))

	objects, err := s.List(context.Background(), "backups/")
	gt.NoError(t, err)
	gt.A(t, objects).Length(1)
	gt.True(t, objects[0].ModTime.Before(time.Now().Add(-71*time.Hour)))
}

func TestLocalStorageListMissingPrefixDir(t *testing.T) {
	s, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)

	objects, err := s.List(context.Background(), "backups/")
	gt.NoError(t, err)
	gt.A(t, objects).Length(0)
}

func TestLocalStorageListIgnoresSiblingDirs(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	dir := t.TempDir()
	s, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)
	writeObject(t, s, "backups/a.json", "a")
	writeObject(t, s, "contexts/x.json", "x")

	locked := filepath.Join(dir, "contexts")
	gt.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	objects, err := s.List(context.Background(), "backups/")
	gt.NoError(t, err)
	gt.A(t, objects).Length(1)
	gt.Equal(t, objects[0].Key, "backups/a.json")
}

func TestLocalStorageRejectsEscapingKey(t *testing.T) {
	s, err := adapter.NewLocalStorage(t.TempDir())
	gt.NoError(t, err)

	_, err = s.Put(context.Background(), "../outside.json")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrValidation))
}

func TestCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	s, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	prefix := fmt.Sprintf("ctxkeep-test/%s", uuid.New().String())
	t.Cleanup(func() {
		objects, err := s.List(ctx, prefix)
		if err != nil {
			return
		}
		for _, obj := range objects {
			_, _ = s.Delete(ctx, obj.Key)
		}
	})

	testStorage(t, s, prefix)
}
