package ddbstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query retrieves the items of one partition matching KeyConditions.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.KeyConditionExpression != nil {
		return nil, errExpressionsUnsupported("KeyConditionExpression")
	}
	if params.FilterExpression != nil {
		return nil, errExpressionsUnsupported("FilterExpression")
	}
	if params.IndexName != nil {
		return nil, fmt.Errorf("secondary indexes are not supported by the local store")
	}
	err := checkParameterStyle(
		params.ProjectionExpression != nil || len(params.ExpressionAttributeNames) > 0 || len(params.ExpressionAttributeValues) > 0,
		len(params.KeyConditions) > 0 || len(params.QueryFilter) > 0 || len(params.AttributesToGet) > 0)
	if err != nil {
		return nil, err
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	keyDefs := tabl.definition.KeyDefinitions

	pkCond, ok := params.KeyConditions[keyDefs.PartitionKey.Name]
	if !ok {
		return nil, fmt.Errorf("key conditions must constrain partition key %q", keyDefs.PartitionKey.Name)
	}
	if pkCond.ComparisonOperator != types.ComparisonOperatorEq || len(pkCond.AttributeValueList) != 1 {
		return nil, fmt.Errorf("partition key condition must be EQ with one value")
	}
	pkDoc := map[string]types.AttributeValue{keyDefs.PartitionKey.Name: pkCond.AttributeValueList[0]}
	partKey, err := table.PrimaryKeyDefinition{PartitionKey: keyDefs.PartitionKey}.ExtractPrimaryKey(pkDoc)
	if err != nil {
		return nil, fmt.Errorf("partition key condition: %w", err)
	}

	var sortKey conditionSet
	for attr, cond := range params.KeyConditions {
		if attr == keyDefs.PartitionKey.Name {
			continue
		}
		if attr != keyDefs.SortKey.Name || !keyDefs.HasSortKey() {
			return nil, fmt.Errorf("key condition on non-key attribute %q", attr)
		}
		if !isKeyOperator(cond.ComparisonOperator) {
			return nil, fmt.Errorf("operator %s is not allowed in a sort key condition", cond.ComparisonOperator)
		}
		sortKey, err = newConditionSet(map[string]types.Condition{attr: cond}, "")
		if err != nil {
			return nil, err
		}
	}

	filter, err := newConditionSet(params.QueryFilter, params.ConditionalOperator)
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(params.ProjectionExpression, params.ExpressionAttributeNames, params.AttributesToGet)
	if err != nil {
		return nil, err
	}

	prefix, err := tabl.keys.EncodePartitionKeyPrefix(partKey.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("encode partition key prefix: %w", err)
	}

	pg := page{
		prefix:  prefix,
		reverse: params.ScanIndexForward != nil && !*params.ScanIndexForward,
		keyDefs: keyDefs,
		keyCond: sortKey,
		filter:  filter,
	}
	if params.Limit != nil {
		pg.limit = int(*params.Limit)
	}
	if params.ExclusiveStartKey != nil {
		if pg.start, err = startKey(tabl, params.ExclusiveStartKey); err != nil {
			return nil, err
		}
	}

	res, err := s.readPage(ctx, pg)
	if err != nil {
		return nil, err
	}

	out := &dynamodb.QueryOutput{
		Count:            int32(len(res.items)),
		ScannedCount:     int32(res.scanned),
		LastEvaluatedKey: res.lastKey,
	}
	if params.Select != types.SelectCount {
		out.Items = proj.applyAll(res.items)
	}
	return out, nil
}

func isKeyOperator(op types.ComparisonOperator) bool {
	switch op {
	case types.ComparisonOperatorEq, types.ComparisonOperatorLt, types.ComparisonOperatorLe,
		types.ComparisonOperatorGt, types.ComparisonOperatorGe,
		types.ComparisonOperatorBeginsWith, types.ComparisonOperatorBetween:
		return true
	}
	return false
}

func startKey(tabl *tableSchema, esk map[string]types.AttributeValue) ([]byte, error) {
	pk, err := tabl.definition.ExtractPrimaryKey(esk)
	if err != nil {
		return nil, fmt.Errorf("extract start key: %w", err)
	}
	key, err := tabl.encodeKey(pk)
	if err != nil {
		return nil, fmt.Errorf("encode start key: %w", err)
	}
	return key, nil
}

// page describes one Query or Scan page over the keys under prefix.
type page struct {
	prefix  []byte
	start   []byte // exclusive start key, nil to start at the beginning
	reverse bool
	limit   int
	keyDefs table.PrimaryKeyDefinition
	// keyCond drops items before they count as scanned.
	keyCond conditionSet
	filter  conditionSet
}

type pageResult struct {
	items   []map[string]types.AttributeValue
	scanned int
	lastKey map[string]types.AttributeValue
}

// readPage iterates keys in order. Limit caps the number of items evaluated,
// not returned, as DynamoDB does. LastEvaluatedKey is set when the limit
// stopped the page early.
func (s *Store) readPage(ctx context.Context, pg page) (pageResult, error) {
	var res pageResult
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = pg.reverse
		opts.Prefix = pg.prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		switch {
		case pg.start != nil:
			it.Seek(pg.start)
			if it.Valid() && bytes.Equal(it.Item().Key(), pg.start) {
				it.Next()
			}
		case pg.reverse:
			it.Seek(incrementBytes(pg.prefix))
		default:
			it.Seek(pg.prefix)
		}

		for ; it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !bytes.HasPrefix(it.Item().Key(), pg.prefix) {
				break
			}

			var item map[string]types.AttributeValue
			if err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = DeserializeItem(val)
				return err
			}); err != nil {
				return err
			}
			if !pg.keyCond.match(item) {
				continue
			}

			res.scanned++
			if pg.filter.match(item) {
				res.items = append(res.items, item)
			}

			if pg.limit > 0 && res.scanned >= pg.limit {
				it.Next()
				if it.Valid() && bytes.HasPrefix(it.Item().Key(), pg.prefix) {
					res.lastKey = pg.keyDefs.KeyAttributes(item)
				}
				break
			}
		}
		return nil
	})
	return res, err
}

func (p projection) applyAll(items []map[string]types.AttributeValue) []map[string]types.AttributeValue {
	if p == nil {
		return items
	}
	out := make([]map[string]types.AttributeValue, len(items))
	for i, item := range items {
		out[i] = p.apply(item)
	}
	return out
}
