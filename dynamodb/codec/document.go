package codec

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MarshalItem converts a record into a DynamoDB item. The record is not modified.
func MarshalItem(rec Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(rec))
	for k, v := range rec {
		av, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// UnmarshalItem converts a DynamoDB item into a record.
func UnmarshalItem(item map[string]types.AttributeValue) (Record, error) {
	rec := make(Record, len(item))
	for k, av := range item {
		v, err := Unmarshal(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		rec[k] = v
	}
	return rec, nil
}

// MarshalList converts each element of vs, keeping order.
func MarshalList(vs []any) ([]types.AttributeValue, error) {
	out := make([]types.AttributeValue, len(vs))
	for i, v := range vs {
		av, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = av
	}
	return out, nil
}

func UnmarshalList(avs []types.AttributeValue) ([]any, error) {
	out := make([]any, len(avs))
	for i, av := range avs {
		v, err := Unmarshal(av)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FromStruct converts a tagged struct (dynamodbav tags) into a record.
func FromStruct(v any) (Record, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return UnmarshalItem(item)
}

// ToStruct fills out, a pointer to a tagged struct, from rec.
func ToStruct(rec Record, out any) error {
	item, err := MarshalItem(rec)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", out, err)
	}
	return nil
}

// Clone returns a shallow copy of rec.
func Clone(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
