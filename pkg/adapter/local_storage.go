package adapter

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const localTempPrefix = ".tmp-"

// localStorage implements Storage on a directory. Keys map to relative paths.
type localStorage struct {
	root string
}

// NewLocalStorage creates a Storage rooted at dir
func NewLocalStorage(dir string) (Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &localStorage{root: dir}, nil
}

func (s *localStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", goerr.Wrap(model.ErrValidation, "invalid storage key", goerr.V("key", key))
	}
	return filepath.Join(s.root, clean), nil
}

// atomicWriter buffers into a temp file and renames it into place on Close
type atomicWriter struct {
	tmp    *os.File
	target string
	closed bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(w.tmp.Name())
		return goerr.Wrap(err, "failed to close temp file", goerr.V("path", w.tmp.Name()))
	}
	if err := os.Rename(w.tmp.Name(), w.target); err != nil {
		_ = os.Remove(w.tmp.Name())
		return goerr.Wrap(err, "failed to move object into place", goerr.V("path", w.target))
	}
	return nil
}

func (s *localStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create object directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), localTempPrefix+"*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create temp file", goerr.V("key", key))
	}
	return &atomicWriter{tmp: tmp, target: target}, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(model.ErrNotFound, "object not found", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("key", key))
	}
	return f, nil
}

// List walks only the directory named by prefix, so unrelated data under the
// root is never visited. Entries vanishing during the walk are skipped.
func (s *localStorage) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	start := s.root
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		dir, err := s.path(prefix[:i])
		if err != nil {
			return nil, err
		}
		start = dir
	}

	var objects []*ObjectInfo
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), localTempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		objects = append(objects, &ObjectInfo{
			Key:     key,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
	}

	return objects, nil
}

func (s *localStorage) Delete(ctx context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete object", goerr.V("key", key))
	}
	return true, nil
}
