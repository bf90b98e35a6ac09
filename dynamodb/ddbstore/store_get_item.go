package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// GetItem retrieves an item by its primary key.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}

	err := checkParameterStyle(params.ProjectionExpression != nil || len(params.ExpressionAttributeNames) > 0,
		len(params.AttributesToGet) > 0)
	if err != nil {
		return nil, err
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	if len(params.Key) != len(tabl.definition.KeyDefinitions.KeyAttributes(params.Key)) {
		return nil, fmt.Errorf("key must contain only the primary key attributes")
	}
	_, key, err := tabl.extractKey(params.Key)
	if err != nil {
		return nil, err
	}

	proj, err := parseProjection(params.ProjectionExpression, params.ExpressionAttributeNames, params.AttributesToGet)
	if err != nil {
		return nil, err
	}

	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = getItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: proj.apply(item)}, nil
}
