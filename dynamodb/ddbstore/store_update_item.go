package ddbstore

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// UpdateItem applies AttributeUpdates to an item, creating it when absent.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required")
	}
	if params.Key == nil {
		return nil, fmt.Errorf("key is required")
	}
	if params.UpdateExpression != nil {
		return nil, errExpressionsUnsupported("UpdateExpression")
	}
	if params.ConditionExpression != nil {
		return nil, errExpressionsUnsupported("ConditionExpression")
	}

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}

	_, key, err := tabl.extractKey(params.Key)
	if err != nil {
		return nil, err
	}
	for attr := range params.AttributeUpdates {
		if tabl.definition.KeyDefinitions.IsKey(attr) {
			return nil, fmt.Errorf("cannot update key attribute %q", attr)
		}
	}

	var oldItem, newItem map[string]types.AttributeValue

	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = getItem(txn, key)
		if err != nil {
			return err
		}
		newItem = maps.Clone(oldItem)
		if newItem == nil {
			newItem = maps.Clone(params.Key)
		}
		for attr, upd := range params.AttributeUpdates {
			if err := applyUpdate(newItem, attr, upd); err != nil {
				return err
			}
		}
		itemBytes, err := SerializeItem(newItem)
		if err != nil {
			return fmt.Errorf("serialize item: %w", err)
		}
		return txn.Set(key, itemBytes)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = newItem
	case types.ReturnValueAllOld:
		out.Attributes = oldItem
	case types.ReturnValueUpdatedNew:
		out.Attributes = pick(newItem, slices.Collect(maps.Keys(params.AttributeUpdates)))
	case types.ReturnValueUpdatedOld:
		out.Attributes = pick(oldItem, slices.Collect(maps.Keys(params.AttributeUpdates)))
	}
	return out, nil
}

func pick(item map[string]types.AttributeValue, attrs []string) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	return projection(attrs).apply(item)
}

// applyUpdate performs one legacy AttributeValueUpdate on item.
func applyUpdate(item map[string]types.AttributeValue, attr string, upd types.AttributeValueUpdate) error {
	switch upd.Action {
	case "", types.AttributeActionPut:
		if upd.Value == nil {
			return fmt.Errorf("update %q: PUT requires a value", attr)
		}
		item[attr] = upd.Value
	case types.AttributeActionDelete:
		if upd.Value == nil {
			delete(item, attr)
			return nil
		}
		remaining, err := setDifference(item[attr], upd.Value)
		if err != nil {
			return fmt.Errorf("update %q: %w", attr, err)
		}
		if remaining == nil {
			delete(item, attr)
		} else {
			item[attr] = remaining
		}
	case types.AttributeActionAdd:
		if upd.Value == nil {
			return fmt.Errorf("update %q: ADD requires a value", attr)
		}
		sum, err := add(item[attr], upd.Value)
		if err != nil {
			return fmt.Errorf("update %q: %w", attr, err)
		}
		item[attr] = sum
	default:
		return fmt.Errorf("update %q: unknown action %q", attr, upd.Action)
	}
	return nil
}

// add implements ADD for numbers, sets and lists.
func add(cur, v types.AttributeValue) (types.AttributeValue, error) {
	if cur == nil {
		return v, nil
	}
	switch v := v.(type) {
	case *types.AttributeValueMemberN:
		c, ok := cur.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("ADD of a number to %T", cur)
		}
		a, okA := new(big.Rat).SetString(c.Value)
		b, okB := new(big.Rat).SetString(v.Value)
		if !okA || !okB {
			return nil, fmt.Errorf("invalid number operand")
		}
		return &types.AttributeValueMemberN{Value: formatRat(a.Add(a, b))}, nil
	case *types.AttributeValueMemberSS:
		c, ok := cur.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("ADD of a string set to %T", cur)
		}
		return &types.AttributeValueMemberSS{Value: union(c.Value, v.Value, func(x, y string) bool { return x == y })}, nil
	case *types.AttributeValueMemberNS:
		c, ok := cur.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, fmt.Errorf("ADD of a number set to %T", cur)
		}
		return &types.AttributeValueMemberNS{Value: union(c.Value, v.Value, numbersEqual)}, nil
	case *types.AttributeValueMemberL:
		c, ok := cur.(*types.AttributeValueMemberL)
		if !ok {
			return nil, fmt.Errorf("ADD of a list to %T", cur)
		}
		return &types.AttributeValueMemberL{Value: append(slices.Clone(c.Value), v.Value...)}, nil
	}
	return nil, fmt.Errorf("ADD is not supported for %T", v)
}

func union[T any](a, b []T, eq func(x, y T) bool) []T {
	out := slices.Clone(a)
	for _, y := range b {
		if !slices.ContainsFunc(out, func(x T) bool { return eq(x, y) }) {
			out = append(out, y)
		}
	}
	return out
}

// setDifference removes the elements of v from the set cur. A nil result
// means the set became empty.
func setDifference(cur, v types.AttributeValue) (types.AttributeValue, error) {
	if cur == nil {
		return nil, nil
	}
	switch v := v.(type) {
	case *types.AttributeValueMemberSS:
		c, ok := cur.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("DELETE of a string set from %T", cur)
		}
		rest := slices.DeleteFunc(slices.Clone(c.Value), func(x string) bool { return slices.Contains(v.Value, x) })
		if len(rest) == 0 {
			return nil, nil
		}
		return &types.AttributeValueMemberSS{Value: rest}, nil
	case *types.AttributeValueMemberNS:
		c, ok := cur.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, fmt.Errorf("DELETE of a number set from %T", cur)
		}
		rest := slices.DeleteFunc(slices.Clone(c.Value), func(x string) bool {
			return slices.ContainsFunc(v.Value, func(y string) bool { return numbersEqual(x, y) })
		})
		if len(rest) == 0 {
			return nil, nil
		}
		return &types.AttributeValueMemberNS{Value: rest}, nil
	}
	return nil, fmt.Errorf("DELETE with a value requires a set, got %T", v)
}

func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	f, _ := r.Float64()
	return big.NewFloat(f).Text('g', -1)
}
