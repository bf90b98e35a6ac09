package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// MaxBatchWriteItems is DynamoDB's limit on requests per BatchWriteItem call.
const MaxBatchWriteItems = 25

// BatchWriteItem performs multiple put/delete operations.
// Requests that do not fit in one Badger transaction are returned as
// UnprocessedItems.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, fmt.Errorf("request items is required")
	}

	type write struct {
		table string
		req   types.WriteRequest
		key   []byte
		value []byte // nil for deletes
	}
	var writes []write
	for _, tableName := range slices.Sorted(maps.Keys(params.RequestItems)) {
		tabl, err := s.getTable(&tableName)
		if err != nil {
			return nil, err
		}
		for _, req := range params.RequestItems[tableName] {
			w := write{table: tableName, req: req}
			switch {
			case req.PutRequest != nil && req.DeleteRequest == nil:
				if _, w.key, err = tabl.extractKey(req.PutRequest.Item); err != nil {
					return nil, err
				}
				if w.value, err = SerializeItem(req.PutRequest.Item); err != nil {
					return nil, fmt.Errorf("serialize item: %w", err)
				}
			case req.DeleteRequest != nil && req.PutRequest == nil:
				if _, w.key, err = tabl.extractKey(req.DeleteRequest.Key); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("write request must have exactly one of PutRequest or DeleteRequest")
			}
			writes = append(writes, w)
		}
	}
	if len(writes) > MaxBatchWriteItems {
		return nil, fmt.Errorf("too many items in batch write: %d, max %d", len(writes), MaxBatchWriteItems)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	unprocessed := make(map[string][]types.WriteRequest)
	for i, w := range writes {
		var err error
		if w.value == nil {
			err = txn.Delete(w.key)
		} else {
			err = txn.Set(w.key, w.value)
		}
		if errors.Is(err, badger.ErrTxnTooBig) {
			for _, rest := range writes[i:] {
				unprocessed[rest.table] = append(unprocessed[rest.table], rest.req)
			}
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return &dynamodb.BatchWriteItemOutput{UnprocessedItems: unprocessed}, nil
}
