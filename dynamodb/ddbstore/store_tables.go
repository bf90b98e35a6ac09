package ddbstore

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

const defaultListTablesLimit = 100

// CreateTable registers a table. Secondary indexes are not supported.
func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if len(params.GlobalSecondaryIndexes) > 0 || len(params.LocalSecondaryIndexes) > 0 {
		return nil, fmt.Errorf("secondary indexes are not supported by the local store")
	}
	def, err := table.DefinitionFromCreateInput(params)
	if err != nil {
		return nil, err
	}
	var tp table.Throughput
	if pt := params.ProvisionedThroughput; pt != nil {
		tp = table.Throughput{
			ReadCapacityUnits:  aws.ToInt64(pt.ReadCapacityUnits),
			WriteCapacityUnits: aws.ToInt64(pt.WriteCapacityUnits),
		}
	}
	schema, err := s.createTable(def, tp)
	if err != nil {
		return nil, err
	}
	desc, err := s.describe(schema)
	if err != nil {
		return nil, err
	}
	return &dynamodb.CreateTableOutput{TableDescription: desc}, nil
}

// DeleteTable removes a table and all of its items.
func (s *Store) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if params == nil || params.TableName == nil {
		return nil, fmt.Errorf("table name is required")
	}
	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	desc, err := s.describe(schema)
	if err != nil {
		return nil, err
	}
	if _, err := s.dropTable(*params.TableName); err != nil {
		return nil, err
	}
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: desc}, nil
}

// DescribeTable reports a table's key schema, throughput and item count.
func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	desc, err := s.describe(schema)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: desc}, nil
}

// ListTables returns table names in lexicographic order.
func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if params == nil {
		params = &dynamodb.ListTablesInput{}
	}
	limit := defaultListTablesLimit
	if params.Limit != nil && *params.Limit > 0 {
		limit = int(*params.Limit)
	}

	s.mu.RLock()
	names := slices.Sorted(maps.Keys(s.tables))
	s.mu.RUnlock()

	if start := aws.ToString(params.ExclusiveStartTableName); start != "" {
		i, found := slices.BinarySearch(names, start)
		if found {
			i++
		}
		names = names[i:]
	}
	out := &dynamodb.ListTablesOutput{}
	if len(names) > limit {
		names = names[:limit]
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	out.TableNames = names
	return out, nil
}

func (s *Store) describe(schema *tableSchema) (*types.TableDescription, error) {
	def := schema.definition
	in := def.CreateTableInput(schema.throughput)

	var count, size int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = schema.keys.TablePrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
			size += it.Item().ValueSize()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count items of %q: %w", def.Name, err)
	}

	return &types.TableDescription{
		TableName:            aws.String(def.Name),
		TableArn:             aws.String("arn:aws:dynamodb:local:000000000000:table/" + def.Name),
		TableStatus:          types.TableStatusActive,
		CreationDateTime:     aws.Time(schema.created),
		KeySchema:            in.KeySchema,
		AttributeDefinitions: in.AttributeDefinitions,
		ItemCount:            aws.Int64(count),
		TableSizeBytes:       aws.Int64(size),
		ProvisionedThroughput: &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(schema.throughput.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(schema.throughput.WriteCapacityUnits),
		},
	}, nil
}
