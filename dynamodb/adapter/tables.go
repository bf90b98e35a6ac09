package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// entry is a defined model. ready flips once its table is known to exist.
type entry struct {
	model schema.Model
	keys  schema.KeySchema
	ready atomic.Bool
}

// Define registers m and ensures its table exists. Redefining a model
// replaces its schema. The model stays registered when the table cannot be
// ensured, so a later operation retries.
func (a *Adapter) Define(ctx context.Context, m schema.Model) error {
	keys, err := schema.BuildKeySchema(m)
	if err != nil {
		return err
	}
	e := &entry{model: m, keys: keys}

	a.mu.Lock()
	a.models[m.Name] = e
	a.mu.Unlock()

	a.log.Debug("model defined",
		zap.String("model", m.Name),
		zap.String("table", keys.Table.Name),
		zap.String("hash", keys.PartitionKey()),
		zap.String("range", keys.SortKey()),
		zap.Int("breakables", len(keys.Breakables)))
	return a.EnsureTable(ctx, m.Name)
}

// Models returns the names of all defined models.
func (a *Adapter) Models() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.models))
	for name := range a.models {
		names = append(names, name)
	}
	return names
}

// KeySchema returns the derived key schema of a defined model.
func (a *Adapter) KeySchema(model string) (schema.KeySchema, error) {
	e, err := a.lookup(model)
	if err != nil {
		return schema.KeySchema{}, err
	}
	return e.keys, nil
}

func (a *Adapter) lookup(model string) (*entry, error) {
	a.mu.RLock()
	e, ok := a.models[model]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return e, nil
}

// defined returns a defined model whose table exists.
func (a *Adapter) defined(ctx context.Context, model string) (*entry, error) {
	e, err := a.lookup(model)
	if err != nil {
		return nil, err
	}
	if !e.ready.Load() {
		if err := a.ensureReady(ctx, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// EnsureTable creates the table of model when no table of that name exists
// and waits until the table is ACTIVE. Only names are compared, an existing
// table's key schema is not checked. Errors are returned and leave the model
// to be ensured again by the next operation.
// Once it succeeds further calls are no-ops, and concurrent calls for one
// model share a single ListTables/CreateTable round.
func (a *Adapter) EnsureTable(ctx context.Context, model string) error {
	e, err := a.lookup(model)
	if err != nil {
		return err
	}
	return a.ensureReady(ctx, e)
}

// ensureReady shares one ensure per model between concurrent callers. The
// shared run is detached from any single caller's cancellation; each caller
// still stops waiting when its own ctx is done.
func (a *Adapter) ensureReady(ctx context.Context, e *entry) error {
	if e.ready.Load() {
		return nil
	}
	shared := context.WithoutCancel(ctx)
	ch := a.ensure.DoChan(e.model.Name, func() (any, error) {
		if e.ready.Load() {
			return nil, nil
		}
		if err := a.createIfMissing(shared, e); err != nil {
			a.log.Error("ensure table failed",
				zap.String("model", e.model.Name),
				zap.String("table", e.keys.Table.Name),
				zap.Error(err))
			return nil, err
		}
		e.ready.Store(true)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("ensure table %s: %w", e.keys.Table.Name, ctx.Err())
	}
}

func (a *Adapter) createIfMissing(ctx context.Context, e *entry) error {
	name := e.keys.Table.Name
	exists, err := a.tableExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		a.log.Debug("table exists", zap.String("table", name))
		return a.waitActive(ctx, name)
	}

	start := time.Now()
	_, err = a.client.CreateTable(ctx, e.keys.Table.CreateTableInput(a.opts.throughput))
	var inUse *types.ResourceInUseException
	switch {
	case errors.As(err, &inUse):
		a.log.Info("table created concurrently", zap.String("table", name))
	case err != nil:
		return fmt.Errorf("create table %s: %w", name, err)
	default:
		a.log.Info("table created",
			zap.String("table", name),
			zap.Int64("rcu", a.opts.throughput.ReadCapacityUnits),
			zap.Int64("wcu", a.opts.throughput.WriteCapacityUnits),
			a.since(start))
	}
	return a.waitActive(ctx, name)
}

// waitActive blocks until DescribeTable reports the table ACTIVE.
func (a *Adapter) waitActive(ctx context.Context, name string) error {
	if a.opts.tableWait <= 0 {
		return nil
	}
	start := time.Now()
	w := dynamodb.NewTableExistsWaiter(a.client, func(o *dynamodb.TableExistsWaiterOptions) {
		if a.opts.tablePoll > 0 {
			o.MinDelay = a.opts.tablePoll
			o.MaxDelay = max(o.MaxDelay, a.opts.tablePoll)
		}
	})
	err := w.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, a.opts.tableWait)
	if err != nil {
		return fmt.Errorf("wait for table %s: %w", name, err)
	}
	a.log.Debug("table active", zap.String("table", name), a.since(start))
	return nil
}

func (a *Adapter) tableExists(ctx context.Context, name string) (bool, error) {
	p := dynamodb.NewListTablesPaginator(a.client, &dynamodb.ListTablesInput{})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("list tables: %w", err)
		}
		for _, t := range out.TableNames {
			if t == name {
				return true, nil
			}
		}
	}
	return false, nil
}
