package ddbstore

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestEvalCondition(t *testing.T) {
	cond := func(op types.ComparisonOperator, vals ...types.AttributeValue) types.Condition {
		return types.Condition{ComparisonOperator: op, AttributeValueList: vals}
	}
	bin := func(b ...byte) types.AttributeValue { return &types.AttributeValueMemberB{Value: b} }
	ss := &types.AttributeValueMemberSS{Value: []string{"red", "blue"}}
	list := &types.AttributeValueMemberL{Value: []types.AttributeValue{numAV("1"), strAV("x")}}

	tests := []struct {
		name string
		av   types.AttributeValue
		cond types.Condition
		want bool
	}{
		{"eq string", strAV("a"), cond(types.ComparisonOperatorEq, strAV("a")), true},
		{"eq number by value", numAV("1.0"), cond(types.ComparisonOperatorEq, numAV("1")), true},
		{"eq type mismatch", numAV("1"), cond(types.ComparisonOperatorEq, strAV("1")), false},
		{"eq missing", nil, cond(types.ComparisonOperatorEq, strAV("a")), false},
		{"ne", strAV("a"), cond(types.ComparisonOperatorNe, strAV("b")), true},
		{"ne missing", nil, cond(types.ComparisonOperatorNe, strAV("b")), true},
		{"lt number", numAV("9"), cond(types.ComparisonOperatorLt, numAV("10")), true},
		{"lt string", strAV("9"), cond(types.ComparisonOperatorLt, strAV("10")), false},
		{"le", numAV("10"), cond(types.ComparisonOperatorLe, numAV("10")), true},
		{"gt binary", bin(2), cond(types.ComparisonOperatorGt, bin(1)), true},
		{"ge mixed types", strAV("a"), cond(types.ComparisonOperatorGe, numAV("1")), false},
		{"between", numAV("5"), cond(types.ComparisonOperatorBetween, numAV("1"), numAV("5")), true},
		{"between outside", numAV("6"), cond(types.ComparisonOperatorBetween, numAV("1"), numAV("5")), false},
		{"in", strAV("b"), cond(types.ComparisonOperatorIn, strAV("a"), strAV("b")), true},
		{"not in", strAV("c"), cond(types.ComparisonOperatorIn, strAV("a"), strAV("b")), false},
		{"begins with", strAV("users#1"), cond(types.ComparisonOperatorBeginsWith, strAV("users#")), true},
		{"begins with binary", bin(1, 2, 3), cond(types.ComparisonOperatorBeginsWith, bin(1, 2)), true},
		{"contains substring", strAV("hello"), cond(types.ComparisonOperatorContains, strAV("ell")), true},
		{"contains set member", ss, cond(types.ComparisonOperatorContains, strAV("blue")), true},
		{"contains list element", list, cond(types.ComparisonOperatorContains, numAV("1")), true},
		{"not contains", ss, cond(types.ComparisonOperatorNotContains, strAV("green")), true},
		{"null on missing", nil, cond(types.ComparisonOperatorNull), true},
		{"null on present", strAV("a"), cond(types.ComparisonOperatorNull), false},
		{"not null", &types.AttributeValueMemberNULL{Value: true}, cond(types.ComparisonOperatorNotNull), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, validateCondition("attr", tt.cond))
			assert.Equal(t, tt.want, evalCondition(tt.av, tt.cond))
		})
	}
}

func TestValidateCondition(t *testing.T) {
	assert.Error(t, validateCondition("a", types.Condition{ComparisonOperator: types.ComparisonOperatorEq}))
	assert.Error(t, validateCondition("a", types.Condition{ComparisonOperator: types.ComparisonOperatorBetween, AttributeValueList: []types.AttributeValue{numAV("1")}}))
	assert.Error(t, validateCondition("a", types.Condition{ComparisonOperator: types.ComparisonOperatorIn}))
	assert.Error(t, validateCondition("a", types.Condition{ComparisonOperator: types.ComparisonOperatorNull, AttributeValueList: []types.AttributeValue{numAV("1")}}))
	assert.Error(t, validateCondition("a", types.Condition{ComparisonOperator: "LIKE"}))
}

func TestParseProjection(t *testing.T) {
	p, err := parseProjection(ptrStr("#a, b"), map[string]string{"#a": "name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, projection{"name", "b"}, p)

	p, err = parseProjection(nil, nil, []string{"x"})
	assert.NoError(t, err)
	assert.Equal(t, projection{"x"}, p)

	p, err = parseProjection(nil, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, p)

	for _, expr := range []string{"a.b", "l[0]", "#missing", "a,,b"} {
		_, err := parseProjection(ptrStr(expr), nil, nil)
		assert.Error(t, err, expr)
	}
}
