package ddbstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/ddbiface"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Store is a DynamoDB-compatible store backed by BadgerDB.
//
// It implements the table operations and the item operations using the
// legacy condition parameters (KeyConditions, QueryFilter, ScanFilter,
// AttributeUpdates). Expression parameters other than ProjectionExpression
// are rejected, and so is mixing ProjectionExpression with legacy parameters.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	tables map[string]*tableSchema
}

type tableSchema struct {
	definition table.TableDefinition
	throughput table.Throughput
	created    time.Time
	keys       *KeyEncoder
}

func newTableSchema(meta tableMeta) *tableSchema {
	return &tableSchema{
		definition: meta.Definition,
		throughput: meta.Throughput,
		created:    meta.Created,
		keys:       NewKeyEncoder(meta.Definition.Name, meta.Definition.KeyDefinitions),
	}
}

func (t *tableSchema) encodeKey(pk table.PrimaryKey) ([]byte, error) {
	return t.keys.EncodeKey(pk)
}

// tableMeta is persisted under metaPrefix so file-backed stores keep their
// tables across restarts.
type tableMeta struct {
	Definition table.TableDefinition
	Throughput table.Throughput
	Created    time.Time
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

// New opens a BadgerDB-backed DynamoDB store. Tables persisted by earlier
// runs are loaded; defs are created when missing.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:     db,
		tables: make(map[string]*tableSchema),
	}
	if err := s.loadTables(); err != nil {
		db.Close()
		return nil, err
	}
	for _, def := range defs {
		if _, ok := s.tables[def.Name]; ok {
			continue
		}
		if _, err := s.createTable(def, table.Throughput{}); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadTables() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var meta tableMeta
			err := it.Item().Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&meta)
			})
			if err != nil {
				return fmt.Errorf("load table %q: %w", it.Item().Key()[len(metaPrefix):], err)
			}
			s.tables[meta.Definition.Name] = newTableSchema(meta)
		}
		return nil
	})
}

func (s *Store) createTable(def table.TableDefinition, tp table.Throughput) (*tableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + def.Name)}
	}
	meta := tableMeta{Definition: def, Throughput: tp, Created: time.Now().UTC()}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meta); err != nil {
		return nil, fmt.Errorf("encode table %q: %w", def.Name, err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(def.Name), buf.Bytes())
	})
	if err != nil {
		return nil, fmt.Errorf("persist table %q: %w", def.Name, err)
	}
	schema := newTableSchema(meta)
	s.tables[def.Name] = schema
	return schema, nil
}

func (s *Store) dropTable(name string) (*tableSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema, ok := s.tables[name]
	if !ok {
		return nil, tableNotFound(name)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(name))
	})
	if err != nil {
		return nil, fmt.Errorf("delete table %q: %w", name, err)
	}
	if err := s.db.DropPrefix(schema.keys.TablePrefix()); err != nil {
		return nil, fmt.Errorf("drop items of table %q: %w", name, err)
	}
	delete(s.tables, name)
	return schema, nil
}

func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil || *tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, tableNotFound(*tableName)
	}
	return schema, nil
}

func tableNotFound(name string) error {
	return &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + name + " not found")}
}

// IsNotFound reports whether err says a table does not exist.
func IsNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf)
}

var _ ddbiface.Client = (*Store)(nil)
