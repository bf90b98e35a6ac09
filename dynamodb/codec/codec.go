// Package codec converts Go values to DynamoDB attribute values and back.
//
// Scalars map by their Go type: strings to S, every integer and float kind to N,
// []byte to B. Records (map[string]any) and lists ([]any) are converted
// recursively. Numbers decode to int64 when integral and float64 otherwise.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// Record is a single item in its application form.
type Record = map[string]any

// ErrUnsupportedType is returned for values that have no attribute value form.
var ErrUnsupportedType = errors.New("unsupported type")

// Marshal converts v to an attribute value.
func Marshal(v any) (types.AttributeValue, error) {
	switch v := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case types.AttributeValue:
		return v, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: v}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case int:
		return Number(v), nil
	case int8:
		return Number(v), nil
	case int16:
		return Number(v), nil
	case int32:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case uint:
		return Number(v), nil
	case uint8:
		return Number(v), nil
	case uint16:
		return Number(v), nil
	case uint32:
		return Number(v), nil
	case uint64:
		return Number(v), nil
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	case json.Number:
		if _, err := strconv.ParseFloat(string(v), 64); err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v, err)
		}
		return &types.AttributeValueMemberN{Value: string(v)}, nil
	case []any:
		l, err := MarshalList(v)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	case map[string]any:
		m, err := MarshalItem(v)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w %T: %w", ErrUnsupportedType, v, err)
	}
	return av, nil
}

// Number encodes an integer as an N attribute value.
func Number[T constraints.Integer](v T) *types.AttributeValueMemberN {
	if v < 0 {
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(v), 10)}
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(v), 10)}
}

// Float encodes a float as an N attribute value. NaN and infinities have no DynamoDB form.
func Float[T constraints.Float](v T) (*types.AttributeValueMemberN, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not a finite number", ErrUnsupportedType, f)
	}
	bits := 64
	if _, ok := any(v).(float32); ok {
		bits = 32
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(f, 'f', -1, bits)}, nil
}

// Unmarshal converts an attribute value to its Go form.
func Unmarshal(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case nil:
		return nil, nil
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return ParseNumber(v.Value)
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberL:
		return UnmarshalList(v.Value)
	case *types.AttributeValueMemberM:
		return UnmarshalItem(v.Value)
	case *types.AttributeValueMemberSS:
		return append([]string(nil), v.Value...), nil
	case *types.AttributeValueMemberNS:
		out := make([]any, len(v.Value))
		for i, n := range v.Value {
			num, err := ParseNumber(n)
			if err != nil {
				return nil, err
			}
			out[i] = num
		}
		return out, nil
	case *types.AttributeValueMemberBS:
		return append([][]byte(nil), v.Value...), nil
	default:
		return nil, fmt.Errorf("%w: attribute value %T", ErrUnsupportedType, av)
	}
}

// ParseNumber parses the string form of an N attribute.
func ParseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}

// KindOf returns the key kind a scalar value would be stored as.
func KindOf(v any) (table.KeyKind, bool) {
	switch v.(type) {
	case string:
		return table.KeyKindS, true
	case []byte:
		return table.KeyKindB, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return table.KeyKindN, true
	}
	return "", false
}
