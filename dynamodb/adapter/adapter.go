// Package adapter maps schema-defined models onto DynamoDB tables.
//
// An Adapter owns a registry of defined models, makes sure each model's table
// exists, and translates record operations (create, find, all, update,
// destroy) into DynamoDB calls. Long string attributes flagged as breakable
// are split across numbered sub-attributes on write and joined on read.
//
//	a := adapter.New(client, adapter.WithLogger(log))
//	if err := a.Define(ctx, user); err != nil {
//	    return err
//	}
//	rec, err := a.Create(ctx, "User", codec.Record{"realm": "eu", "name": "Ann"})
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/config"
	"github.com/acksell/ddbmodel/dynamodb/ddbiface"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no item.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownModel is returned for operations on a model that was never defined.
	ErrUnknownModel = errors.New("unknown model")
	// ErrInvalidKey is returned when a key misses a required value or has one the model cannot take.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidQuery is returned for malformed where clauses and query options.
	ErrInvalidQuery = errors.New("invalid query")
)

// Adapter is safe for concurrent use.
type Adapter struct {
	client ddbiface.Client
	log    *zap.Logger
	opts   options

	mu     sync.RWMutex
	models map[string]*entry

	ensure singleflight.Group
}

type options struct {
	logger      *zap.Logger
	throughput  table.Throughput
	maxRetries  int
	backoff     BackoffFunc
	concurrency int
	newID       func() string
	tableWait   time.Duration
	tablePoll   time.Duration
}

// Option configures an Adapter.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithThroughput sets the provisioned capacity used for tables created by the adapter.
func WithThroughput(tp table.Throughput) Option {
	return func(o *options) {
		o.throughput = tp
	}
}

// WithBatchRetries bounds how often unprocessed batch writes are resubmitted.
func WithBatchRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithBackoff sets the wait between batch write retries. See [ExponentialBackoff].
func WithBackoff(fn BackoffFunc) Option {
	return func(o *options) {
		o.backoff = fn
	}
}

// WithBatchConcurrency sets how many batch writes DestroyAll keeps in flight.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithIDGenerator replaces uuid.NewString for uuid-flagged id properties.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

// WithTableWait bounds how long EnsureTable waits for a new table to become
// ACTIVE, polling DescribeTable every poll at first. A zero poll keeps the
// SDK waiter's default; a non-positive max skips the wait.
func WithTableWait(max, poll time.Duration) Option {
	return func(o *options) {
		o.tableWait = max
		o.tablePoll = poll
	}
}

// New returns an adapter that talks to client. client is usually a
// *dynamodb.Client or a *ddbstore.Store.
func New(client ddbiface.Client, opts ...Option) *Adapter {
	o := options{
		throughput:  table.Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 10},
		maxRetries:  5,
		backoff:     DefaultBackoff,
		concurrency: 4,
		newID:       uuid.NewString,
		tableWait:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return &Adapter{
		client: client,
		log:    o.logger,
		opts:   o,
		models: make(map[string]*entry),
	}
}

// Connect builds a DynamoDB client from s and wraps it in an adapter.
// Throughput defaults to the configured capacities; opts are applied after.
func Connect(ctx context.Context, s config.Settings, opts ...Option) (*Adapter, error) {
	client, err := config.NewClient(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.EndpointURL(), err)
	}
	return New(client, append([]Option{WithThroughput(s.Throughput())}, opts...)...), nil
}

// Client returns the storage client the adapter was built with.
func (a *Adapter) Client() ddbiface.Client {
	return a.client
}

func (a *Adapter) since(start time.Time) zap.Field {
	return zap.Duration("took", time.Since(start))
}
