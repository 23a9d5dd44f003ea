package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
)

const countAlias = "total"

// Collection offers typed access to one Firestore collection. Documents decode into T with
// Firestore's native struct mapping; setID copies the document ID onto the decoded value.
type Collection[T any] struct {
	provider *Provider
	name     string
	setID    func(*T, string)
}

// NewCollection binds a typed helper to the named collection.
func NewCollection[T any](provider *Provider, name string, setID func(*T, string)) *Collection[T] {
	return &Collection[T]{provider: provider, name: name, setID: setID}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Ref returns the underlying collection reference.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	return c.provider.Collection(ctx, c.name)
}

// Doc returns the document reference for id.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if id == "" {
		return nil, fmt.Errorf("%s: document id is required", c.name)
	}
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Doc(id), nil
}

// Get loads and decodes a single document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.Decode(snap)
}

// Create writes a new document, failing with a conflict when id already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value any) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Create(ctx, value)
	return WrapError(c.op("create"), err)
}

// Set replaces the document stored under id.
func (c *Collection[T]) Set(ctx context.Context, id string, value any, opts ...firestore.SetOption) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, value, opts...)
	return WrapError(c.op("set"), err)
}

// Update applies field updates to an existing document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Update(ctx, updates, firestore.Exists)
	return WrapError(c.op("update"), err)
}

// Delete removes the document, failing with not found when it does not exist.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Delete(ctx, firestore.Exists)
	return WrapError(c.op("delete"), err)
}

// All runs the query and decodes every result.
func (c *Collection[T]) All(ctx context.Context, query firestore.Query) ([]T, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		value, err := c.Decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
}

// Page runs the query skipping offset documents and returning at most limit results.
func (c *Collection[T]) Page(ctx context.Context, query firestore.Query, offset, limit int) ([]T, error) {
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	return c.All(ctx, query)
}

// Count runs a server-side aggregation count over the query.
func (c *Collection[T]) Count(ctx context.Context, query firestore.Query) (int64, error) {
	result, err := query.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, WrapError(c.op("count"), err)
	}
	raw, ok := result[countAlias]
	if !ok {
		return 0, fmt.Errorf("%s: aggregation result missing %q", c.op("count"), countAlias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected aggregation value %T", c.op("count"), raw)
	}
	return value.GetIntegerValue(), nil
}

// Decode converts a snapshot into T.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (T, error) {
	var value T
	if err := snap.DataTo(&value); err != nil {
		return value, fmt.Errorf("%s: decode %s: %w", c.op("decode"), snap.Ref.ID, err)
	}
	if c.setID != nil {
		c.setID(&value, snap.Ref.ID)
	}
	return value, nil
}

// TxGet reads a document inside a transaction.
func (c *Collection[T]) TxGet(ctx context.Context, tx *firestore.Transaction, id string) (T, error) {
	var zero T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := tx.Get(doc)
	if err != nil {
		return zero, WrapError(c.op("tx.get"), err)
	}
	return c.Decode(snap)
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
