package ddbstore

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// operandCount is the AttributeValueList length each operator accepts.
// -1 means one or more.
var operandCount = map[types.ComparisonOperator]int{
	types.ComparisonOperatorEq:          1,
	types.ComparisonOperatorNe:          1,
	types.ComparisonOperatorLt:          1,
	types.ComparisonOperatorLe:          1,
	types.ComparisonOperatorGt:          1,
	types.ComparisonOperatorGe:          1,
	types.ComparisonOperatorBeginsWith:  1,
	types.ComparisonOperatorContains:    1,
	types.ComparisonOperatorNotContains: 1,
	types.ComparisonOperatorBetween:     2,
	types.ComparisonOperatorIn:          -1,
	types.ComparisonOperatorNull:        0,
	types.ComparisonOperatorNotNull:     0,
}

func validateCondition(attr string, c types.Condition) error {
	want, ok := operandCount[c.ComparisonOperator]
	if !ok {
		return fmt.Errorf("condition on %q: unsupported operator %q", attr, c.ComparisonOperator)
	}
	got := len(c.AttributeValueList)
	if (want == -1 && got == 0) || (want >= 0 && got != want) {
		return fmt.Errorf("condition on %q: %s takes %s operands, got %d", attr, c.ComparisonOperator, arity(want), got)
	}
	return nil
}

func arity(n int) string {
	if n == -1 {
		return "one or more"
	}
	return fmt.Sprint(n)
}

// evalCondition reports whether av satisfies c. av is nil when the item
// lacks the attribute.
func evalCondition(av types.AttributeValue, c types.Condition) bool {
	ops := c.AttributeValueList
	switch c.ComparisonOperator {
	case types.ComparisonOperatorNull:
		return av == nil
	case types.ComparisonOperatorNotNull:
		return av != nil
	case types.ComparisonOperatorNe:
		return !attributeValuesEqual(av, ops[0])
	case types.ComparisonOperatorNotContains:
		return av == nil || !contains(av, ops[0])
	}
	if av == nil {
		return false
	}
	switch c.ComparisonOperator {
	case types.ComparisonOperatorEq:
		return attributeValuesEqual(av, ops[0])
	case types.ComparisonOperatorIn:
		return slices.ContainsFunc(ops, func(op types.AttributeValue) bool { return attributeValuesEqual(av, op) })
	case types.ComparisonOperatorLt:
		c, ok := compareScalars(av, ops[0])
		return ok && c < 0
	case types.ComparisonOperatorLe:
		c, ok := compareScalars(av, ops[0])
		return ok && c <= 0
	case types.ComparisonOperatorGt:
		c, ok := compareScalars(av, ops[0])
		return ok && c > 0
	case types.ComparisonOperatorGe:
		c, ok := compareScalars(av, ops[0])
		return ok && c >= 0
	case types.ComparisonOperatorBetween:
		lo, okLo := compareScalars(av, ops[0])
		hi, okHi := compareScalars(av, ops[1])
		return okLo && okHi && lo >= 0 && hi <= 0
	case types.ComparisonOperatorBeginsWith:
		return beginsWith(av, ops[0])
	case types.ComparisonOperatorContains:
		return contains(av, ops[0])
	}
	return false
}

func beginsWith(av, prefix types.AttributeValue) bool {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		p, ok := prefix.(*types.AttributeValueMemberS)
		return ok && strings.HasPrefix(v.Value, p.Value)
	case *types.AttributeValueMemberB:
		p, ok := prefix.(*types.AttributeValueMemberB)
		return ok && bytes.HasPrefix(v.Value, p.Value)
	}
	return false
}

func contains(av, needle types.AttributeValue) bool {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		n, ok := needle.(*types.AttributeValueMemberS)
		return ok && strings.Contains(v.Value, n.Value)
	case *types.AttributeValueMemberB:
		n, ok := needle.(*types.AttributeValueMemberB)
		return ok && bytes.Contains(v.Value, n.Value)
	case *types.AttributeValueMemberSS:
		n, ok := needle.(*types.AttributeValueMemberS)
		return ok && slices.Contains(v.Value, n.Value)
	case *types.AttributeValueMemberNS:
		n, ok := needle.(*types.AttributeValueMemberN)
		return ok && slices.ContainsFunc(v.Value, func(x string) bool { return numbersEqual(x, n.Value) })
	case *types.AttributeValueMemberBS:
		n, ok := needle.(*types.AttributeValueMemberB)
		return ok && slices.ContainsFunc(v.Value, func(x []byte) bool { return bytes.Equal(x, n.Value) })
	case *types.AttributeValueMemberL:
		return slices.ContainsFunc(v.Value, func(x types.AttributeValue) bool { return attributeValuesEqual(x, needle) })
	}
	return false
}

// conditionSet is a validated QueryFilter or ScanFilter.
type conditionSet struct {
	conds map[string]types.Condition
	or    bool
}

func newConditionSet(conds map[string]types.Condition, op types.ConditionalOperator) (conditionSet, error) {
	for attr, c := range conds {
		if err := validateCondition(attr, c); err != nil {
			return conditionSet{}, err
		}
	}
	switch op {
	case "", types.ConditionalOperatorAnd, types.ConditionalOperatorOr:
	default:
		return conditionSet{}, fmt.Errorf("unsupported conditional operator %q", op)
	}
	return conditionSet{conds: conds, or: op == types.ConditionalOperatorOr}, nil
}

func (cs conditionSet) match(item map[string]types.AttributeValue) bool {
	if len(cs.conds) == 0 {
		return true
	}
	for attr, c := range cs.conds {
		ok := evalCondition(item[attr], c)
		if ok && cs.or {
			return true
		}
		if !ok && !cs.or {
			return false
		}
	}
	return !cs.or
}
