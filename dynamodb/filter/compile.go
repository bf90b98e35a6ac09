package filter

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Mode int

const (
	ModeScan Mode = iota
	ModeQuery
)

func (m Mode) String() string {
	if m == ModeQuery {
		return "query"
	}
	return "scan"
}

// Plan is a compiled filter. KeyConditions is only set in ModeQuery. Filter
// goes to QueryFilter or ScanFilter depending on the mode.
type Plan struct {
	Mode          Mode
	KeyConditions map[string]types.Condition
	Filter        map[string]types.Condition
}

// keyOperators are the operators DynamoDB accepts on a sort key condition.
var keyOperators = []types.ComparisonOperator{
	types.ComparisonOperatorEq,
	types.ComparisonOperatorLt,
	types.ComparisonOperatorLe,
	types.ComparisonOperatorGt,
	types.ComparisonOperatorGe,
	types.ComparisonOperatorBeginsWith,
	types.ComparisonOperatorBetween,
}

// Compile builds a plan for conds against a table keyed by keys.
func Compile(conds []Condition, keys table.PrimaryKeyDefinition) (Plan, error) {
	compiled := make(map[string]types.Condition, len(conds))
	for _, c := range conds {
		dc, err := compileCondition(c.Clause)
		if err != nil {
			return Plan{}, fmt.Errorf("where %q: %w", c.Attribute, err)
		}
		compiled[c.Attribute] = dc
	}

	if queryable(compiled, keys) {
		plan := Plan{Mode: ModeQuery, KeyConditions: map[string]types.Condition{}, Filter: map[string]types.Condition{}}
		for attr, dc := range compiled {
			if keys.IsKey(attr) {
				plan.KeyConditions[attr] = dc
			} else {
				plan.Filter[attr] = dc
			}
		}
		return plan, nil
	}
	return Plan{Mode: ModeScan, Filter: compiled}, nil
}

func queryable(compiled map[string]types.Condition, keys table.PrimaryKeyDefinition) bool {
	pk, ok := compiled[keys.PartitionKey.Name]
	if !ok || pk.ComparisonOperator != types.ComparisonOperatorEq {
		return false
	}
	if !keys.HasSortKey() {
		return true
	}
	sk, ok := compiled[keys.SortKey.Name]
	return !ok || slices.Contains(keyOperators, sk.ComparisonOperator)
}

func compileCondition(c Clause) (types.Condition, error) {
	switch c := c.(type) {
	case Literal:
		return operands(types.ComparisonOperatorEq, c.Value)
	case SetClause:
		return operands(types.ComparisonOperatorIn, c.Values)
	case OperatorClause:
		return operands(c.Operator, c.Value)
	}
	return types.Condition{}, fmt.Errorf("unknown clause %T", c)
}

func operands(op types.ComparisonOperator, v any) (types.Condition, error) {
	cond := types.Condition{ComparisonOperator: op}
	switch op {
	case types.ComparisonOperatorNull, types.ComparisonOperatorNotNull:
		return cond, nil
	case types.ComparisonOperatorIn, types.ComparisonOperatorBetween:
		vs, ok := asList(v)
		if !ok {
			vs = []any{v}
		}
		if op == types.ComparisonOperatorBetween && len(vs) != 2 {
			return cond, fmt.Errorf("BETWEEN needs two operands, got %d", len(vs))
		}
		if len(vs) == 0 {
			return cond, fmt.Errorf("IN needs at least one operand")
		}
		avs, err := codec.MarshalList(vs)
		if err != nil {
			return cond, err
		}
		cond.AttributeValueList = avs
		return cond, nil
	}
	av, err := codec.Marshal(v)
	if err != nil {
		return cond, err
	}
	cond.AttributeValueList = []types.AttributeValue{av}
	return cond, nil
}

func (p Plan) String() string {
	var b strings.Builder
	b.WriteString(p.Mode.String())
	if p.Mode == ModeQuery {
		b.WriteString(" keys=")
		writeConditions(&b, p.KeyConditions)
	}
	b.WriteString(" filter=")
	writeConditions(&b, p.Filter)
	return b.String()
}

func writeConditions(b *strings.Builder, conds map[string]types.Condition) {
	b.WriteByte('[')
	for i, attr := range slices.Sorted(maps.Keys(conds)) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s %s", attr, conds[attr].ComparisonOperator)
	}
	b.WriteByte(']')
}
