package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/filter"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// All returns the records matching q.Where, ordered, paged and projected as q
// says. The where clause is sent to DynamoDB as a Query when it pins the hash
// key with equality and as a Scan otherwise; everything else in q is applied
// in memory after all pages are read. A nil q returns every record.
func (a *Adapter) All(ctx context.Context, model string, q *filter.Query) ([]codec.Record, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return nil, err
	}
	var where map[string]any
	if q != nil {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("all %s: %w: %w", e.model.Name, ErrInvalidQuery, err)
		}
		where = q.Where
	}
	plan, err := a.plan(e, where)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	recs := []codec.Record{}
	err = a.pages(ctx, e, plan, nil, "", func(items []map[string]types.AttributeValue, _ int32) error {
		for _, item := range items {
			rec, err := a.decode(e, item)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("all %s: %w", e.model.Name, err)
	}
	a.log.Debug("all", zap.String("model", e.model.Name), zap.String("table", e.keys.Table.Name),
		zap.Stringer("plan", plan), zap.Int("matched", len(recs)), a.since(start))
	return q.Apply(recs)
}

// Count returns how many records match where.
func (a *Adapter) Count(ctx context.Context, model string, where map[string]any) (int, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return 0, err
	}
	plan, err := a.plan(e, where)
	if err != nil {
		return 0, err
	}
	var n int
	err = a.pages(ctx, e, plan, nil, types.SelectCount, func(_ []map[string]types.AttributeValue, count int32) error {
		n += int(count)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", e.model.Name, err)
	}
	a.log.Debug("count", zap.String("model", e.model.Name), zap.Stringer("plan", plan), zap.Int("count", n))
	return n, nil
}

// DestroyAll deletes every record matching where and returns how many were deleted.
// Matching keys are read first, then deleted with batched writes.
func (a *Adapter) DestroyAll(ctx context.Context, model string, where map[string]any) (int, error) {
	e, err := a.defined(ctx, model)
	if err != nil {
		return 0, err
	}
	plan, err := a.plan(e, where)
	if err != nil {
		return 0, err
	}
	proj, err := keyProjection(e.keys.Table.KeyDefinitions)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var keys []map[string]types.AttributeValue
	err = a.pages(ctx, e, plan, &proj, "", func(items []map[string]types.AttributeValue, _ int32) error {
		for _, item := range items {
			keys = append(keys, e.keys.Table.KeyDefinitions.KeyAttributes(item))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("destroy all %s: %w", e.model.Name, err)
	}
	if err := a.deleteKeys(ctx, e, keys); err != nil {
		return 0, fmt.Errorf("destroy all %s: %w", e.model.Name, err)
	}
	a.log.Debug("destroy all", zap.String("model", e.model.Name), zap.Stringer("plan", plan),
		zap.Int("deleted", len(keys)), a.since(start))
	return len(keys), nil
}

func (a *Adapter) plan(e *entry, where map[string]any) (filter.Plan, error) {
	conds, err := filter.Parse(where)
	if err != nil {
		return filter.Plan{}, fmt.Errorf("%s where: %w: %w", e.model.Name, ErrInvalidQuery, err)
	}
	plan, err := filter.Compile(conds, e.keys.Table.KeyDefinitions)
	if err != nil {
		return filter.Plan{}, fmt.Errorf("%s where: %w: %w", e.model.Name, ErrInvalidQuery, err)
	}
	return plan, nil
}

// pages runs plan page by page, following LastEvaluatedKey, and hands each
// page's items and count to fn.
func (a *Adapter) pages(ctx context.Context, e *entry, plan filter.Plan, proj *projection, sel types.Select,
	fn func(items []map[string]types.AttributeValue, count int32) error) error {
	var startKey map[string]types.AttributeValue
	for {
		var (
			items []map[string]types.AttributeValue
			count int32
			last  map[string]types.AttributeValue
		)
		switch plan.Mode {
		case filter.ModeQuery:
			in := &dynamodb.QueryInput{
				TableName:         aws.String(e.keys.Table.Name),
				KeyConditions:     plan.KeyConditions,
				QueryFilter:       nonEmpty(plan.Filter),
				ExclusiveStartKey: startKey,
				Select:            sel,
			}
			proj.applyQuery(in)
			out, err := a.client.Query(ctx, in)
			if err != nil {
				return err
			}
			items, count, last = out.Items, out.Count, out.LastEvaluatedKey
		default:
			in := &dynamodb.ScanInput{
				TableName:         aws.String(e.keys.Table.Name),
				ScanFilter:        nonEmpty(plan.Filter),
				ExclusiveStartKey: startKey,
				Select:            sel,
			}
			proj.applyScan(in)
			out, err := a.client.Scan(ctx, in)
			if err != nil {
				return err
			}
			items, count, last = out.Items, out.Count, out.LastEvaluatedKey
		}
		if err := fn(items, count); err != nil {
			return err
		}
		if len(last) == 0 {
			return nil
		}
		startKey = last
	}
}

func nonEmpty(conds map[string]types.Condition) map[string]types.Condition {
	if len(conds) == 0 {
		return nil
	}
	return conds
}

// projection selects the key attributes. GetItem takes the built
// ProjectionExpression; Query and Scan carry legacy KeyConditions and filters,
// which DynamoDB refuses to mix with expressions, so they take the plain
// attribute list.
type projection struct {
	expr  *string
	names map[string]string
	attrs []string
}

func keyProjection(keys table.PrimaryKeyDefinition) (projection, error) {
	attrs := []string{keys.PartitionKey.Name}
	names := expression.NamesList(expression.Name(keys.PartitionKey.Name))
	if keys.HasSortKey() {
		attrs = append(attrs, keys.SortKey.Name)
		names = names.AddNames(expression.Name(keys.SortKey.Name))
	}
	expr, err := expression.NewBuilder().WithProjection(names).Build()
	if err != nil {
		return projection{}, fmt.Errorf("build key projection: %w", err)
	}
	return projection{expr: expr.Projection(), names: expr.Names(), attrs: attrs}, nil
}

func (p *projection) applyGet(in *dynamodb.GetItemInput) {
	if p == nil {
		return
	}
	in.ProjectionExpression = p.expr
	in.ExpressionAttributeNames = p.names
}

func (p *projection) applyQuery(in *dynamodb.QueryInput) {
	if p == nil {
		return
	}
	in.AttributesToGet = p.attrs
}

func (p *projection) applyScan(in *dynamodb.ScanInput) {
	if p == nil {
		return
	}
	in.AttributesToGet = p.attrs
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
