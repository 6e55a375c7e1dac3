package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const contextFileExt = ".json"

// FileSystem stores each context as <dir>/<id>.json
type FileSystem struct {
	dir string
}

// NewFileSystem creates the directory if needed
func NewFileSystem(dir string) (*FileSystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create context directory", goerr.V("dir", dir))
	}
	return &FileSystem{dir: dir}, nil
}

func (r *FileSystem) path(id model.ContextID) string {
	return filepath.Join(r.dir, string(id)+contextFileExt)
}

func (r *FileSystem) PutContext(ctx context.Context, c *model.Context) error {
	if err := validateID(c.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal context", goerr.V("id", c.ID))
	}

	if err := writeFileAtomic(r.path(c.ID), data); err != nil {
		return goerr.Wrap(err, "failed to write context", goerr.V("id", c.ID))
	}
	return nil
}

func (r *FileSystem) GetContext(ctx context.Context, id model.ContextID) (*model.Context, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	c, err := readContextFile(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read context", goerr.V("id", id))
	}
	return c, nil
}

func (r *FileSystem) ListContexts(ctx context.Context) ([]*model.Context, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read context directory", goerr.V("dir", r.dir))
	}

	contexts := make([]*model.Context, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, contextFileExt) || strings.HasPrefix(name, ".") {
			continue
		}

		c, err := readContextFile(filepath.Join(r.dir, name))
		if err != nil {
			logging.From(ctx).Warn("skip unreadable context file", "file", name, "error", err)
			continue
		}
		contexts = append(contexts, c)
	}
	return contexts, nil
}

func (r *FileSystem) DeleteContext(ctx context.Context, id model.ContextID) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	err := os.Remove(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to remove context", goerr.V("id", id))
	}
	return true, nil
}

func (r *FileSystem) DeleteAllContexts(ctx context.Context) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return goerr.Wrap(err, "failed to read context directory", goerr.V("dir", r.dir))
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), contextFileExt) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return goerr.Wrap(err, "failed to remove context", goerr.V("path", path))
		}
	}
	return nil
}

func (r *FileSystem) Close() error {
	return nil
}

func readContextFile(path string) (*model.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c model.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal context", goerr.V("path", path))
	}
	return &c, nil
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", tmpName))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return goerr.Wrap(err, "failed to close temp file", goerr.V("path", tmpName))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return goerr.Wrap(err, "failed to rename temp file", goerr.V("path", path))
	}
	return nil
}
