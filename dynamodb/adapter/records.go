package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/chunk"
	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Key identifies a record by its hash and, for models that have one, range value.
type Key struct {
	Hash  any
	Range any
}

// ParseKey builds a Key from its textual form, as typed on a command line or
// found in a URL path. Values take the kind of the model's key attributes:
// numbers stay exact as json.Number and binary keys are the raw bytes.
func (a *Adapter) ParseKey(model string, hash string, rng ...string) (Key, error) {
	e, err := a.lookup(model)
	if err != nil {
		return Key{}, err
	}
	if len(rng) > 1 {
		return Key{}, fmt.Errorf("%s: %w: at most one range value", model, ErrInvalidKey)
	}
	defs := e.keys.Table.KeyDefinitions
	k := Key{Hash: keyValue(defs.PartitionKey.Kind, hash)}
	if len(rng) == 1 {
		if !defs.HasSortKey() {
			return Key{}, fmt.Errorf("%s: %w: model has no range key", model, ErrInvalidKey)
		}
		k.Range = keyValue(defs.SortKey.Kind, rng[0])
	}
	return k, nil
}

func keyValue(kind table.KeyKind, s string) any {
	switch kind {
	case table.KeyKindN:
		return json.Number(s)
	case table.KeyKindB:
		return []byte(s)
	}
	return s
}

// Create stores rec as a new record. A missing id is generated when the id
// property is the uuid hash key. The stored form is returned, with breakable
// attributes already split into their numbered parts.
func (a *Adapter) Create(ctx context.Context, model string, rec codec.Record) (codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	rec = codec.Clone(rec)
	if pk := e.keys.PartitionKey(); e.keys.UUIDKey && rec[pk] == nil {
		rec[pk] = a.opts.newID()
	}
	return a.put(ctx, e, rec, "create")
}

// Save writes rec in full, replacing any record with the same key.
func (a *Adapter) Save(ctx context.Context, model string, rec codec.Record) (codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	return a.put(ctx, e, codec.Clone(rec), "save")
}

func (a *Adapter) put(ctx context.Context, e *entry, rec codec.Record, op string) (codec.Record, error) {
	start := time.Now()
	item, err := a.encode(e, rec)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, e.model.Name, err)
	}
	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(e.keys.Table.Name),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, e.model.Name, err)
	}
	a.log.Debug(op, zap.String("model", e.model.Name), zap.String("table", e.keys.Table.Name),
		zap.Int("attributes", len(item)), a.since(start))
	return rec, nil
}

// Find returns the record stored under k. With only k.Hash set on a model
// that has a range key, the first record of the partition is returned.
func (a *Adapter) Find(ctx context.Context, model string, k Key) (codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	item, err := a.findItem(ctx, e, k, nil)
	if err != nil {
		return nil, err
	}
	return a.decode(e, item)
}

// Exists reports whether a record is stored under k. Only key attributes are read.
func (a *Adapter) Exists(ctx context.Context, model string, k Key) (bool, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return false, err
	}
	proj, err := keyProjection(e.keys.Table.KeyDefinitions)
	if err != nil {
		return false, err
	}
	_, err = a.findItem(ctx, e, k, &proj)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	}
	return false, err
}

func (a *Adapter) findItem(ctx context.Context, e *entry, k Key, proj *projection) (map[string]types.AttributeValue, error) {
	start := time.Now()
	defer func() {
		a.log.Debug("find", zap.String("model", e.model.Name), zap.String("table", e.keys.Table.Name),
			zap.Bool("partition", k.Range == nil && e.keys.SortKey() != ""), a.since(start))
	}()

	if e.keys.SortKey() != "" && k.Range == nil {
		hash, err := a.keyItem(e, Key{Hash: k.Hash}, false)
		if err != nil {
			return nil, err
		}
		in := &dynamodb.QueryInput{
			TableName: aws.String(e.keys.Table.Name),
			KeyConditions: map[string]types.Condition{
				e.keys.PartitionKey(): {
					ComparisonOperator: types.ComparisonOperatorEq,
					AttributeValueList: []types.AttributeValue{hash[e.keys.PartitionKey()]},
				},
			},
			Limit: aws.Int32(1),
		}
		proj.applyQuery(in)
		out, err := a.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", e.model.Name, err)
		}
		if len(out.Items) == 0 {
			return nil, fmt.Errorf("find %s %v: %w", e.model.Name, k.Hash, ErrNotFound)
		}
		return out.Items[0], nil
	}

	key, err := a.keyItem(e, k, true)
	if err != nil {
		return nil, err
	}
	in := &dynamodb.GetItemInput{
		TableName: aws.String(e.keys.Table.Name),
		Key:       key,
	}
	proj.applyGet(in)
	out, err := a.client.GetItem(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", e.model.Name, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("find %s %v: %w", e.model.Name, k, ErrNotFound)
	}
	return out.Item, nil
}

// UpdateAttributes merges rec into the record stored under k and returns the
// record as stored afterwards. Key attributes and nil values in rec are
// ignored. A breakable attribute is rewritten in full: its new parts are put
// and any parts left over from a longer previous value are removed.
func (a *Adapter) UpdateAttributes(ctx context.Context, model string, k Key, rec codec.Record) (codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	key, err := a.keyItem(e, k, true)
	if err != nil {
		return nil, err
	}
	updates, err := a.attributeUpdates(e, rec)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", e.model.Name, err)
	}
	out, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(e.keys.Table.Name),
		Key:              key,
		AttributeUpdates: updates,
		ReturnValues:     types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", e.model.Name, err)
	}
	a.log.Debug("update", zap.String("model", e.model.Name), zap.String("table", e.keys.Table.Name),
		zap.Int("updates", len(updates)), a.since(start))
	return a.decode(e, out.Attributes)
}

func (a *Adapter) attributeUpdates(e *entry, rec codec.Record) (map[string]types.AttributeValueUpdate, error) {
	keys := e.keys.Table.KeyDefinitions
	breakables := make(map[string]chunk.Directive, len(e.keys.Breakables))
	for _, b := range e.keys.Breakables {
		breakables[b.Attribute] = b.Directive
	}

	updates := make(map[string]types.AttributeValueUpdate, len(rec))
	put := func(name string, v any) error {
		av, err := codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		updates[name] = types.AttributeValueUpdate{Action: types.AttributeActionPut, Value: av}
		return nil
	}
	remove := func(name string) {
		if _, ok := updates[name]; !ok {
			updates[name] = types.AttributeValueUpdate{Action: types.AttributeActionDelete}
		}
	}

	for name, v := range rec {
		if v == nil || keys.IsKey(name) {
			continue
		}
		d, breakable := breakables[name]
		s, isString := v.(string)
		if !breakable || !isString {
			if err := put(name, v); err != nil {
				return nil, err
			}
			continue
		}
		pieces := d.Split(s)
		n := len(pieces)
		for i, piece := range pieces {
			if piece != "" {
				if err := put(chunk.PartName(name, i+1), piece); err != nil {
					return nil, err
				}
			}
		}
		remove(name)
		for i := 1; i <= max(n, d.MaxPieces()); i++ {
			remove(chunk.PartName(name, i))
		}
	}
	return updates, nil
}

// Destroy deletes the record stored under k and returns it.
func (a *Adapter) Destroy(ctx context.Context, model string, k Key) (codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	key, err := a.keyItem(e, k, true)
	if err != nil {
		return nil, err
	}
	out, err := a.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(e.keys.Table.Name),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("destroy %s: %w", e.model.Name, err)
	}
	a.log.Debug("destroy", zap.String("model", e.model.Name), zap.String("table", e.keys.Table.Name),
		zap.Bool("existed", out.Attributes != nil))
	if out.Attributes == nil {
		return nil, fmt.Errorf("destroy %s %v: %w", e.model.Name, k, ErrNotFound)
	}
	return a.decode(e, out.Attributes)
}

// keyItem marshals k. requireRange demands a range value on models that have a range key.
func (a *Adapter) keyItem(e *entry, k Key, requireRange bool) (map[string]types.AttributeValue, error) {
	pk, sk := e.keys.PartitionKey(), e.keys.SortKey()
	if k.Hash == nil {
		return nil, fmt.Errorf("%s: %w: hash key %q is required", e.model.Name, ErrInvalidKey, pk)
	}
	key := make(map[string]types.AttributeValue, 2)
	av, err := codec.Marshal(k.Hash)
	if err != nil {
		return nil, fmt.Errorf("%s: hash key %q: %w", e.model.Name, pk, err)
	}
	key[pk] = av

	switch {
	case sk == "" && k.Range != nil:
		return nil, fmt.Errorf("%s: %w: model has no range key", e.model.Name, ErrInvalidKey)
	case sk == "":
		return key, nil
	case k.Range == nil && requireRange:
		return nil, fmt.Errorf("%s: %w: range key %q is required", e.model.Name, ErrInvalidKey, sk)
	case k.Range == nil:
		return key, nil
	}
	av, err = codec.Marshal(k.Range)
	if err != nil {
		return nil, fmt.Errorf("%s: range key %q: %w", e.model.Name, sk, err)
	}
	key[sk] = av
	return key, nil
}

// encode splits the breakable attributes of rec in place and marshals it.
func (a *Adapter) encode(e *entry, rec codec.Record) (map[string]types.AttributeValue, error) {
	for _, name := range []string{e.keys.PartitionKey(), e.keys.SortKey()} {
		if name != "" && rec[name] == nil {
			return nil, fmt.Errorf("%w: key attribute %q is required", ErrInvalidKey, name)
		}
	}
	for _, b := range e.keys.Breakables {
		chunk.Apply(rec, b.Attribute, b.Directive)
	}
	return codec.MarshalItem(rec)
}

// decode unmarshals item and joins its breakable attributes.
func (a *Adapter) decode(e *entry, item map[string]types.AttributeValue) (codec.Record, error) {
	rec, err := codec.UnmarshalItem(item)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.model.Name, err)
	}
	return join(e, rec), nil
}

func join(e *entry, rec codec.Record) codec.Record {
	for _, b := range e.keys.Breakables {
		chunk.Join(rec, b.Attribute)
	}
	return rec
}
