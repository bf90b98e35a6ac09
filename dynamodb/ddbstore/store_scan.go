package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Scan reads every item of a table, applying ScanFilter.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.FilterExpression != nil {
		return nil, errExpressionsUnsupported("FilterExpression")
	}
	if params.IndexName != nil {
		return nil, fmt.Errorf("secondary indexes are not supported by the local store")
	}
	if params.TotalSegments != nil && *params.TotalSegments > 1 {
		return nil, fmt.Errorf("parallel scan segments are not supported by the local store")
	}
	err := checkParameterStyle(
		params.ProjectionExpression != nil || len(params.ExpressionAttributeNames) > 0 || len(params.ExpressionAttributeValues) > 0,
		len(params.ScanFilter) > 0 || len(params.AttributesToGet) > 0)
	if err != nil {
		return nil, err
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	filter, err := newConditionSet(params.ScanFilter, params.ConditionalOperator)
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(params.ProjectionExpression, params.ExpressionAttributeNames, params.AttributesToGet)
	if err != nil {
		return nil, err
	}

	pg := page{
		prefix:  tabl.keys.TablePrefix(),
		keyDefs: tabl.definition.KeyDefinitions,
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

	out := &dynamodb.ScanOutput{
		Count:            int32(len(res.items)),
		ScannedCount:     int32(res.scanned),
		LastEvaluatedKey: res.lastKey,
	}
	if params.Select != types.SelectCount {
		out.Items = proj.applyAll(res.items)
	}
	return out, nil
}
