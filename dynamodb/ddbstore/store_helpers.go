package ddbstore

import (
	"bytes"
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func ptrStr(s string) *string {
	return &s
}

// attributeValuesEqual compares two attribute values the way DynamoDB's EQ
// does: numbers by value, sets ignoring order.
func attributeValuesEqual(a, b types.AttributeValue) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return av.Value == bv.Value
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			c, err := compareNumbers(av.Value, bv.Value)
			return err == nil && c == 0
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Equal(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberBOOL:
		if bv, ok := b.(*types.AttributeValueMemberBOOL); ok {
			return av.Value == bv.Value
		}
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	case *types.AttributeValueMemberSS:
		if bv, ok := b.(*types.AttributeValueMemberSS); ok {
			return sameElements(av.Value, bv.Value, func(x, y string) bool { return x == y })
		}
	case *types.AttributeValueMemberNS:
		if bv, ok := b.(*types.AttributeValueMemberNS); ok {
			return sameElements(av.Value, bv.Value, numbersEqual)
		}
	case *types.AttributeValueMemberBS:
		if bv, ok := b.(*types.AttributeValueMemberBS); ok {
			return sameElements(av.Value, bv.Value, bytes.Equal)
		}
	case *types.AttributeValueMemberL:
		if bv, ok := b.(*types.AttributeValueMemberL); ok {
			return slices.EqualFunc(av.Value, bv.Value, attributeValuesEqual)
		}
	case *types.AttributeValueMemberM:
		if bv, ok := b.(*types.AttributeValueMemberM); ok {
			if len(av.Value) != len(bv.Value) {
				return false
			}
			for k, v := range av.Value {
				if !attributeValuesEqual(v, bv.Value[k]) {
					return false
				}
			}
			return true
		}
	}
	return false
}

func sameElements[T any](a, b []T, eq func(x, y T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.ContainsFunc(b, func(y T) bool { return eq(x, y) }) {
			return false
		}
	}
	return true
}

func numbersEqual(a, b string) bool {
	c, err := compareNumbers(a, b)
	return err == nil && c == 0
}

// compareNumbers compares DynamoDB number strings exactly.
func compareNumbers(a, b string) (int, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", b)
	}
	return ra.Cmp(rb), nil
}

// compareScalars orders two S, N or B values of the same type. ok is false
// when the values are not comparable.
func compareScalars(a, b types.AttributeValue) (c int, ok bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, isS := b.(*types.AttributeValueMemberS); isS {
			return cmp.Compare(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		if bv, isN := b.(*types.AttributeValueMemberN); isN {
			c, err := compareNumbers(av.Value, bv.Value)
			return c, err == nil
		}
	case *types.AttributeValueMemberB:
		if bv, isB := b.(*types.AttributeValueMemberB); isB {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	return 0, false
}

// validateKey rejects key values DynamoDB does not accept.
func validateKey(pk table.PrimaryKey) error {
	check := func(name string, v any) error {
		switch v := v.(type) {
		case string:
			if v == "" {
				return fmt.Errorf("key attribute %q must not be empty", name)
			}
		case []byte:
			if len(v) == 0 {
				return fmt.Errorf("key attribute %q must not be empty", name)
			}
		}
		return nil
	}
	if err := check(pk.Definition.PartitionKey.Name, pk.Values.PartitionKey); err != nil {
		return err
	}
	if pk.Definition.HasSortKey() {
		return check(pk.Definition.SortKey.Name, pk.Values.SortKey)
	}
	return nil
}

// extractKey pulls and validates the primary key of doc.
func (t *tableSchema) extractKey(doc map[string]types.AttributeValue) (table.PrimaryKey, []byte, error) {
	pk, err := t.definition.ExtractPrimaryKey(doc)
	if err != nil {
		return table.PrimaryKey{}, nil, fmt.Errorf("extract primary key: %w", err)
	}
	if err := validateKey(pk); err != nil {
		return table.PrimaryKey{}, nil, err
	}
	key, err := t.encodeKey(pk)
	if err != nil {
		return table.PrimaryKey{}, nil, fmt.Errorf("encode key: %w", err)
	}
	return pk, key, nil
}

func incrementBytes(b []byte) []byte {
	result := make([]byte, len(b))
	copy(result, b)
	for i := len(result) - 1; i >= 0; i-- {
		if result[i] < 0xFF {
			result[i]++
			return result
		}
		result[i] = 0
	}
	// Overflow - append 0x00
	return append(result, 0x00)
}
