package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ctxkeep/pkg/model"
	"github.com/m-mizutani/ctxkeep/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreContextCollection = "contexts"

// Firestore stores each context as a document in the "contexts" collection
type Firestore struct {
	client     *firestore.Client
	collection string
}

type contextDoc struct {
	ID        string             `firestore:"id"`
	Content   string             `firestore:"content"`
	Metadata  model.Metadata     `firestore:"metadata"`
	Embedding firestore.Vector32 `firestore:"embedding,omitempty"`
}

func toContextDoc(c *model.Context) *contextDoc {
	doc := &contextDoc{
		ID:       string(c.ID),
		Content:  c.Content,
		Metadata: c.Metadata,
	}
	if len(c.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(c.Embedding)
	}
	return doc
}

func (d *contextDoc) toModel() *model.Context {
	c := &model.Context{
		ID:       model.ContextID(d.ID),
		Content:  d.Content,
		Metadata: d.Metadata,
	}
	if len(d.Embedding) > 0 {
		c.Embedding = []float32(d.Embedding)
	}
	return c
}

// NewFirestore creates a new Firestore repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{
		client:     client,
		collection: firestoreContextCollection,
	}, nil
}

func (r *Firestore) PutContext(ctx context.Context, c *model.Context) error {
	if err := validateID(c.ID); err != nil {
		return err
	}

	if _, err := r.client.Collection(r.collection).Doc(string(c.ID)).Set(ctx, toContextDoc(c)); err != nil {
		return goerr.Wrap(err, "failed to put context", goerr.V("id", c.ID))
	}
	return nil
}

func (r *Firestore) GetContext(ctx context.Context, id model.ContextID) (*model.Context, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	snap, err := r.client.Collection(r.collection).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(model.ErrNotFound, "context not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get context", goerr.V("id", id))
	}

	var doc contextDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode context", goerr.V("id", id))
	}
	return doc.toModel(), nil
}

func (r *Firestore) ListContexts(ctx context.Context) ([]*model.Context, error) {
	iter := r.client.Collection(r.collection).Documents(ctx)
	defer iter.Stop()

	var contexts []*model.Context
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate contexts")
		}

		var doc contextDoc
		if err := snap.DataTo(&doc); err != nil {
			logging.From(ctx).Warn("skip undecodable context", "id", snap.Ref.ID, "error", err)
			continue
		}
		contexts = append(contexts, doc.toModel())
	}

	return contexts, nil
}

func (r *Firestore) DeleteContext(ctx context.Context, id model.ContextID) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	ref := r.client.Collection(r.collection).Doc(string(id))
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get context", goerr.V("id", id))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return false, goerr.Wrap(err, "failed to delete context", goerr.V("id", id))
	}
	return true, nil
}

func (r *Firestore) DeleteAllContexts(ctx context.Context) error {
	iter := r.client.Collection(r.collection).DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate contexts")
		}

		if _, err := ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete context", goerr.V("id", ref.ID))
		}
	}
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}
