package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Doc pairs a decoded document with its identity and server timestamps.
type Doc[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder shapes a collection query before it runs.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection is a typed handle on one Firestore collection. Documents decode
// into T through Firestore's struct tags.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed handle to the named collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Set upserts value under the given document id.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, value)
	return WrapError(c.op("set"), err)
}

// Update applies field-level updates to the document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, updates)
	return WrapError(c.op("update"), err)
}

// Get fetches and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Doc[T], error) {
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return Doc[T]{}, err
	}
	snapshot, err := ref.Get(ctx)
	if err != nil {
		return Doc[T]{}, WrapError(c.op("get"), err)
	}
	return decodeSnapshot[T](snapshot)
}

// Query runs a query over the collection and decodes every match.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Doc[T], error) {
	ref, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}

	query := ref.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Doc[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return docs, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		doc, err := decodeSnapshot[T](snapshot)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// Doc returns the raw document reference, for transactional reads and writes.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("doc"), errors.New("firestore: document id is required"))
	}
	ref, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Doc(id), nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("collection"), errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError(c.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.name != "" {
		name = c.name
	}
	return name + "." + action
}

func decodeSnapshot[T any](snapshot *firestore.DocumentSnapshot) (Doc[T], error) {
	var data T
	if err := snapshot.DataTo(&data); err != nil {
		return Doc[T]{}, fmt.Errorf("firestore: decode document %s: %w", snapshot.Ref.ID, err)
	}
	return Doc[T]{
		ID:         snapshot.Ref.ID,
		Data:       data,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}
