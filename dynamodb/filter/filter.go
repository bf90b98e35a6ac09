// Package filter parses "where" filters and compiles them into DynamoDB
// condition maps.
//
// A where filter maps attribute names to one of three clause shapes:
//
//	{"name": "John"}                   literal, compiled to EQ
//	{"age": {"gt": 20}}                operator clause
//	{"realm": []any{"users", "admin"}} set clause, compiled to IN
//
// When the partition key is constrained with EQ the plan is an indexed Query,
// otherwise every condition becomes a Scan filter.
package filter

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Clause is one of Literal, OperatorClause or SetClause.
type Clause interface {
	isClause()
}

type Literal struct {
	Value any
}

type OperatorClause struct {
	Operator types.ComparisonOperator
	Value    any
}

type SetClause struct {
	Values []any
}

func (Literal) isClause()        {}
func (OperatorClause) isClause() {}
func (SetClause) isClause()      {}

type Condition struct {
	Attribute string
	Clause    Clause
}

// Parse turns a where map into conditions sorted by attribute name.
func Parse(where map[string]any) ([]Condition, error) {
	conds := make([]Condition, 0, len(where))
	for attr, v := range where {
		c, err := parseClause(v)
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", attr, err)
		}
		conds = append(conds, Condition{Attribute: attr, Clause: c})
	}
	slices.SortFunc(conds, func(a, b Condition) int { return strings.Compare(a.Attribute, b.Attribute) })
	return conds, nil
}

func parseClause(v any) (Clause, error) {
	if m, ok := v.(map[string]any); ok {
		if len(m) != 1 {
			return nil, fmt.Errorf("operator clause needs exactly one operator, got %d", len(m))
		}
		for tok, operand := range m {
			op, err := ParseOperator(tok)
			if err != nil {
				return nil, err
			}
			return OperatorClause{Operator: op, Value: operand}, nil
		}
	}
	if vs, ok := asList(v); ok {
		return SetClause{Values: vs}, nil
	}
	return Literal{Value: v}, nil
}

// asList reports whether v is a sequence. []byte is a binary scalar, not a list.
func asList(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// aliases maps filter tokens whose names differ from DynamoDB's operators.
var aliases = map[string]types.ComparisonOperator{
	"GTE":        types.ComparisonOperatorGe,
	"LTE":        types.ComparisonOperatorLe,
	"NEQ":        types.ComparisonOperatorNe,
	"INQ":        types.ComparisonOperatorIn,
	"BEGINSWITH": types.ComparisonOperatorBeginsWith,
	"NOTNULL":    types.ComparisonOperatorNotNull,
}

// ParseOperator maps a filter token such as "gt", "gte" or "inq" to a
// DynamoDB comparison operator.
func ParseOperator(tok string) (types.ComparisonOperator, error) {
	up := strings.ToUpper(strings.TrimSpace(tok))
	if op, ok := aliases[up]; ok {
		return op, nil
	}
	if up == "NIN" || up == "NOT_IN" {
		return "", fmt.Errorf("operator %q is not supported by DynamoDB", tok)
	}
	op := types.ComparisonOperator(up)
	if !slices.Contains(op.Values(), op) {
		return "", fmt.Errorf("unknown operator %q", tok)
	}
	return op, nil
}
