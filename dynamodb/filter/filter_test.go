package filter

import (
	"testing"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var realmKeys = table.PrimaryKeyDefinition{
	PartitionKey: table.KeyDef{Name: "realm", Kind: table.KeyKindS},
	SortKey:      table.KeyDef{Name: "id", Kind: table.KeyKindS},
}

func compile(t *testing.T, where map[string]any) Plan {
	t.Helper()
	conds, err := Parse(where)
	require.NoError(t, err)
	plan, err := Compile(conds, realmKeys)
	require.NoError(t, err)
	return plan
}

func TestParse(t *testing.T) {
	conds, err := Parse(map[string]any{
		"name":  "John",
		"age":   map[string]any{"gt": 20},
		"realm": []string{"users", "admin"},
		"blob":  []byte("raw"),
	})
	require.NoError(t, err)
	assert.Equal(t, []Condition{
		{Attribute: "age", Clause: OperatorClause{Operator: types.ComparisonOperatorGt, Value: 20}},
		{Attribute: "blob", Clause: Literal{Value: []byte("raw")}},
		{Attribute: "name", Clause: Literal{Value: "John"}},
		{Attribute: "realm", Clause: SetClause{Values: []any{"users", "admin"}}},
	}, conds)

	t.Run("operator clause arity", func(t *testing.T) {
		_, err := Parse(map[string]any{"age": map[string]any{}})
		assert.Error(t, err)
		_, err = Parse(map[string]any{"age": map[string]any{"gt": 1, "lt": 5}})
		assert.Error(t, err)
	})

	t.Run("unknown operator", func(t *testing.T) {
		_, err := Parse(map[string]any{"name": map[string]any{"like": "J%"}})
		assert.Error(t, err)
	})
}

func TestParseOperator(t *testing.T) {
	cases := map[string]types.ComparisonOperator{
		"eq":          types.ComparisonOperatorEq,
		"gt":          types.ComparisonOperatorGt,
		"GE":          types.ComparisonOperatorGe,
		"gte":         types.ComparisonOperatorGe,
		"lte":         types.ComparisonOperatorLe,
		"neq":         types.ComparisonOperatorNe,
		"inq":         types.ComparisonOperatorIn,
		"between":     types.ComparisonOperatorBetween,
		"begins_with": types.ComparisonOperatorBeginsWith,
		"not_null":    types.ComparisonOperatorNotNull,
		"contains":    types.ComparisonOperatorContains,
	}
	for tok, want := range cases {
		got, err := ParseOperator(tok)
		require.NoError(t, err, tok)
		assert.Equal(t, want, got, tok)
	}
	for _, tok := range []string{"nin", "like", ""} {
		_, err := ParseOperator(tok)
		assert.Error(t, err, tok)
	}
}

func TestCompile(t *testing.T) {
	t.Run("partition key selects query", func(t *testing.T) {
		plan := compile(t, map[string]any{"realm": "users"})
		assert.Equal(t, ModeQuery, plan.Mode)
		assert.Equal(t, map[string]types.Condition{
			"realm": {
				ComparisonOperator: types.ComparisonOperatorEq,
				AttributeValueList: []types.AttributeValue{&types.AttributeValueMemberS{Value: "users"}},
			},
		}, plan.KeyConditions)
		assert.Empty(t, plan.Filter)
	})

	t.Run("no partition key selects scan", func(t *testing.T) {
		plan := compile(t, map[string]any{"name": "John", "id": "1"})
		assert.Equal(t, ModeScan, plan.Mode)
		assert.Nil(t, plan.KeyConditions)
		assert.Len(t, plan.Filter, 2)
	})

	t.Run("other attributes become query filters", func(t *testing.T) {
		plan := compile(t, map[string]any{
			"realm": "users",
			"id":    map[string]any{"begins_with": "a"},
			"age":   map[string]any{"gte": 18},
		})
		assert.Equal(t, ModeQuery, plan.Mode)
		assert.Len(t, plan.KeyConditions, 2)
		assert.Equal(t, types.ComparisonOperatorBeginsWith, plan.KeyConditions["id"].ComparisonOperator)
		assert.Equal(t, map[string]types.Condition{
			"age": {
				ComparisonOperator: types.ComparisonOperatorGe,
				AttributeValueList: []types.AttributeValue{&types.AttributeValueMemberN{Value: "18"}},
			},
		}, plan.Filter)
	})

	t.Run("non equality partition key scans", func(t *testing.T) {
		plan := compile(t, map[string]any{"realm": map[string]any{"gt": "a"}})
		assert.Equal(t, ModeScan, plan.Mode)
		assert.Contains(t, plan.Filter, "realm")
	})

	t.Run("set clause on partition key scans", func(t *testing.T) {
		plan := compile(t, map[string]any{"realm": []any{"users", "admins"}})
		assert.Equal(t, ModeScan, plan.Mode)
		assert.Equal(t, types.ComparisonOperatorIn, plan.Filter["realm"].ComparisonOperator)
		assert.Len(t, plan.Filter["realm"].AttributeValueList, 2)
	})

	t.Run("sort key operator unusable in key conditions scans", func(t *testing.T) {
		plan := compile(t, map[string]any{"realm": "users", "id": map[string]any{"ne": "1"}})
		assert.Equal(t, ModeScan, plan.Mode)
		assert.Len(t, plan.Filter, 2)
	})

	t.Run("operand shapes", func(t *testing.T) {
		plan := compile(t, map[string]any{
			"age":   map[string]any{"between": []int{18, 30}},
			"email": map[string]any{"null": true},
		})
		assert.Len(t, plan.Filter["age"].AttributeValueList, 2)
		assert.Empty(t, plan.Filter["email"].AttributeValueList)
	})

	t.Run("bad operands", func(t *testing.T) {
		for _, where := range []map[string]any{
			{"age": map[string]any{"between": []int{1}}},
			{"age": []any{}},
			{"age": make(chan int)},
		} {
			conds, err := Parse(where)
			require.NoError(t, err)
			_, err = Compile(conds, realmKeys)
			assert.Error(t, err)
		}
	})
}

func TestPlanString(t *testing.T) {
	plan := compile(t, map[string]any{"realm": "users", "age": map[string]any{"gt": 1}, "name": "x"})
	assert.Equal(t, "query keys=[realm EQ] filter=[age GT, name EQ]", plan.String())
	assert.Equal(t, "scan filter=[name EQ]", compile(t, map[string]any{"name": "x"}).String())
}

func TestParseOrder(t *testing.T) {
	orders, err := ParseOrder("age DESC, name")
	require.NoError(t, err)
	assert.Equal(t, []Order{{Attribute: "age", Desc: true}, {Attribute: "name"}}, orders)

	orders, err = ParseOrder("")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = ParseOrder("age sideways")
	assert.Error(t, err)
	_, err = ParseOrder("a b c")
	assert.Error(t, err)
}

func TestQueryApply(t *testing.T) {
	recs := func() []codec.Record {
		return []codec.Record{
			{"id": "1", "name": "John", "age": int64(20)},
			{"id": "2", "name": "Jane", "age": int64(31)},
			{"id": "3", "name": "Adam", "age": 25.5},
			{"id": "4", "name": "Zed"},
		}
	}
	ids := func(rs []codec.Record) []any {
		out := make([]any, len(rs))
		for i, r := range rs {
			out[i] = r["id"]
		}
		return out
	}

	t.Run("order ascending", func(t *testing.T) {
		out, err := (&Query{Order: "age ASC"}).Apply(recs())
		require.NoError(t, err)
		assert.Equal(t, []any{"4", "1", "3", "2"}, ids(out))
	})

	t.Run("order descending", func(t *testing.T) {
		out, err := (&Query{Order: "name DESC"}).Apply(recs())
		require.NoError(t, err)
		assert.Equal(t, []any{"4", "1", "2", "3"}, ids(out))
	})

	t.Run("skip and limit", func(t *testing.T) {
		out, err := (&Query{Order: "id", Skip: 1, Limit: 2}).Apply(recs())
		require.NoError(t, err)
		assert.Equal(t, []any{"2", "3"}, ids(out))

		out, err = (&Query{Skip: 10}).Apply(recs())
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("fields", func(t *testing.T) {
		out, err := (&Query{Order: "id", Limit: 1, Fields: []string{"name", "missing"}}).Apply(recs())
		require.NoError(t, err)
		assert.Equal(t, []codec.Record{{"name": "John"}}, out)
	})

	t.Run("nil query", func(t *testing.T) {
		var q *Query
		out, err := q.Apply(recs())
		require.NoError(t, err)
		assert.Len(t, out, 4)
		assert.NoError(t, q.Validate())
	})

	t.Run("validate", func(t *testing.T) {
		assert.Error(t, (&Query{Limit: -1}).Validate())
		assert.Error(t, (&Query{Order: "a up"}).Validate())
	})
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues(nil, false))
	assert.Equal(t, -1, CompareValues(false, true))
	assert.Equal(t, 0, CompareValues(int64(2), 2.0))
	assert.Equal(t, 1, CompareValues(int64(3), 2.5))
	assert.Equal(t, -1, CompareValues(int64(9), "1"))
	assert.Equal(t, 1, CompareValues("b", "a"))
	assert.Equal(t, -1, CompareValues([]byte{1}, []byte{2}))
}
