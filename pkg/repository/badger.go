package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var badgerContextPrefix = []byte("context/")

// Badger stores each context as one key "context/<id>" in a BadgerDB
type Badger struct {
	db *badger.DB
}

// NewBadger opens (or creates) a BadgerDB at dir
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open badger database", goerr.V("dir", dir))
	}
	return &Badger{db: db}, nil
}

// NewBadgerInMemory opens a BadgerDB without disk persistence
func NewBadgerInMemory() (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open in-memory badger database")
	}
	return &Badger{db: db}, nil
}

func badgerKey(id model.ContextID) []byte {
	return append(append([]byte{}, badgerContextPrefix...), string(id)...)
}

func (r *Badger) PutContext(ctx context.Context, c *model.Context) error {
	if err := validateID(c.ID); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal context", goerr.V("id", c.ID))
	}

	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(c.ID), data)
	}); err != nil {
		return goerr.Wrap(err, "failed to put context", goerr.V("id", c.ID))
	}
	return nil
}

func (r *Badger) GetContext(ctx context.Context, id model.ContextID) (*model.Context, error) {
	var c model.Context
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get context", goerr.V("id", id))
	}
	return &c, nil
}

func (r *Badger) ListContexts(ctx context.Context) ([]*model.Context, error) {
	var contexts []*model.Context

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerContextPrefix
		opts.PrefetchSize = 10

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var c model.Context
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				logging.From(ctx).Warn("skip unreadable context", "key", string(item.Key()), "error", err)
				continue
			}
			contexts = append(contexts, &c)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list contexts")
	}

	return contexts, nil
}

func (r *Badger) DeleteContext(ctx context.Context, id model.ContextID) (bool, error) {
	existed := true
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				existed = false
				return nil
			}
			return err
		}
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V("id", id))
	}
	return existed, nil
}

func (r *Badger) DeleteAllContexts(ctx context.Context) error {
	if err := r.db.DropPrefix(badgerContextPrefix); err != nil {
		return goerr.Wrap(err, "failed to drop contexts")
	}
	return nil
}

func (r *Badger) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
