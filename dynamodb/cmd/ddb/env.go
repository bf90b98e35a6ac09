package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/adapter"
	"github.com/acksell/ddbmodel/dynamodb/config"
	"github.com/acksell/ddbmodel/dynamodb/ddbiface"
	"github.com/acksell/ddbmodel/dynamodb/ddbstore"
	"github.com/acksell/ddbmodel/dynamodb/schema"
	"go.uber.org/zap"
)

// storeFlags are shared by every command that touches records.
type storeFlags struct {
	config string
	schema string
	memory bool
	db     string
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "settings file (default: ddb.yaml searched upward)")
	fs.StringVar(&f.schema, "schema", "", "model declarations (default: every "+schemaFilename+" in the repository)")
	fs.BoolVar(&f.memory, "memory", false, "use an in-memory local store")
	fs.StringVar(&f.db, "db", "", "use a local store persisted in this directory")
}

// env is an adapter with every declared model defined.
type env struct {
	settings config.Settings
	log      *zap.Logger
	adapter  *adapter.Adapter
	closers  []func() error
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.log.Warn("close", zap.Error(err))
		}
	}
}

func (f *storeFlags) open(ctx context.Context) (*env, error) {
	s, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	log, err := config.NewLogger(s)
	if err != nil {
		return nil, err
	}
	// Sync fails on terminals.
	e := &env{settings: s, log: log, closers: []func() error{func() error { _ = log.Sync(); return nil }}}

	models, err := f.models()
	if err != nil {
		return nil, err
	}

	var client ddbiface.Client
	if f.memory || f.db != "" {
		store, err := ddbstore.New(ddbstore.StoreOptions{
			Path:     f.db,
			InMemory: f.memory,
			Logger:   ddbstore.ZapLogger(log),
		})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		e.closers = append([]func() error{store.Close}, e.closers...)
		client = store
		log.Debug("using local store", zap.String("path", f.db), zap.Bool("memory", f.memory))
	} else {
		c, err := config.NewClient(ctx, s)
		if err != nil {
			return nil, err
		}
		client = c
		log.Debug("using endpoint", zap.String("endpoint", s.EndpointURL()), zap.String("region", s.Region))
	}

	e.adapter = adapter.New(client, adapter.WithLogger(log), adapter.WithThroughput(s.Throughput()))
	for _, m := range models {
		if err := e.adapter.Define(ctx, m); err != nil {
			e.Close()
			return nil, fmt.Errorf("define %s: %w", m.Name, err)
		}
	}
	return e, nil
}

func (f *storeFlags) models() ([]schema.Model, error) {
	paths := []string{f.schema}
	if f.schema == "" {
		found, err := DiscoverSchemas()
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no models: pass --schema or add a %s file", schemaFilename)
		}
		paths = found
	}
	return loadModels(paths)
}

func loadModels(paths []string) ([]schema.Model, error) {
	var models []schema.Model
	declared := make(map[string]string)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		ms, err := schema.Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, m := range ms {
			if prev, ok := declared[m.Name]; ok {
				return nil, fmt.Errorf("model %s declared in both %s and %s", m.Name, prev, path)
			}
			declared[m.Name] = path
		}
		models = append(models, ms...)
	}
	return models, nil
}

// usage builds a FlagSet usage function from a synopsis and examples.
func usage(fs *flag.FlagSet, synopsis string, examples ...string) func() {
	return func() {
		fmt.Printf("ddb %s\n\nUsage:\n  ddb %s\n\nFlags:\n", fs.Name(), synopsis)
		fs.PrintDefaults()
		if len(examples) > 0 {
			fmt.Printf("\nExamples:\n  %s\n", strings.Join(examples, "\n  "))
		}
	}
}
