package adapter

import (
	"context"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/filter"
)

// Typed binds a defined model to a Go struct type. Fields are mapped with
// dynamodbav struct tags.
//
//	type User struct {
//	    Realm string `dynamodbav:"realm"`
//	    ID    string `dynamodbav:"id"`
//	    Name  string `dynamodbav:"name"`
//	}
//	users := adapter.For[User](a, "User")
//	u, err := users.Find(ctx, adapter.Key{Hash: "eu", Range: "1"})
type Typed[T any] struct {
	a     *Adapter
	model string
}

func For[T any](a *Adapter, model string) *Typed[T] {
	return &Typed[T]{a: a, model: model}
}

// Create stores v and returns it as stored, including a generated id.
func (t *Typed[T]) Create(ctx context.Context, v T) (T, error) {
	rec, err := codec.FromStruct(v)
	if err != nil {
		return v, err
	}
	stored, err := t.a.Create(ctx, t.model, rec)
	if err != nil {
		return v, err
	}
	return t.bind(stored)
}

// Save overwrites the record with v's key.
func (t *Typed[T]) Save(ctx context.Context, v T) error {
	rec, err := codec.FromStruct(v)
	if err != nil {
		return err
	}
	_, err = t.a.Save(ctx, t.model, rec)
	return err
}

func (t *Typed[T]) Find(ctx context.Context, k Key) (T, error) {
	rec, err := t.a.Find(ctx, t.model, k)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.bind(rec)
}

func (t *Typed[T]) All(ctx context.Context, q *filter.Query) ([]T, error) {
	recs, err := t.a.All(ctx, t.model, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := t.bind(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Destroy deletes the record under k and returns its last stored state.
func (t *Typed[T]) Destroy(ctx context.Context, k Key) (T, error) {
	rec, err := t.a.Destroy(ctx, t.model, k)
	if err != nil {
		var zero T
		return zero, err
	}
	return t.bind(rec)
}

// bind converts rec to T, joining any breakable parts still split in rec.
func (t *Typed[T]) bind(rec codec.Record) (T, error) {
	var v T
	e, err := t.a.lookup(t.model)
	if err != nil {
		return v, err
	}
	err = codec.ToStruct(join(e, codec.Clone(rec)), &v)
	return v, err
}
