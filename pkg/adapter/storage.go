package adapter

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// ObjectInfo describes a stored object. ModTime is the storage layer's
// modification time, not anything recorded inside the object.
type ObjectInfo struct {
	Key     string
	ModTime time.Time
	Size    int64
}

// Storage is the interface for backup archive storage
type Storage interface {
	// Put returns a writer. The object becomes visible when the writer is closed.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens an object. Returns model.ErrNotFound when it does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)
	// Delete removes an object and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(key)
	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, goerr.Wrap(model.ErrNotFound, "object not found", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}

func (s *storageClient) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []*ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects",
				goerr.V("bucket", s.bucketName), goerr.V("prefix", prefix))
		}

		objects = append(objects, &ObjectInfo{
			Key:     attrs.Name,
			ModTime: attrs.Updated,
			Size:    attrs.Size,
		})
	}
	return objects, nil
}

func (s *storageClient) Delete(ctx context.Context, key string) (bool, error) {
	err := s.client.Bucket(s.bucketName).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete object", goerr.V("key", key))
	}
	return true, nil
}
