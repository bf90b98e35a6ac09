package filter

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/acksell/ddbmodel/dynamodb/codec"
)

// Query holds the options accepted by All.
type Query struct {
	Where map[string]any
	// Order is "attr", "attr ASC" or "attr DESC", comma separated for
	// several sort attributes.
	Order  string
	Limit  int
	Skip   int
	Fields []string
}

type Order struct {
	Attribute string
	Desc      bool
}

// ParseOrder parses an order string such as "age DESC, name".
func ParseOrder(s string) ([]Order, error) {
	var out []Order
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		switch len(fields) {
		case 0:
			continue
		case 1:
			out = append(out, Order{Attribute: fields[0]})
		case 2:
			switch strings.ToUpper(fields[1]) {
			case "ASC":
				out = append(out, Order{Attribute: fields[0]})
			case "DESC":
				out = append(out, Order{Attribute: fields[0], Desc: true})
			default:
				return nil, fmt.Errorf("order %q: direction must be ASC or DESC", part)
			}
		default:
			return nil, fmt.Errorf("order %q: expected \"attr [ASC|DESC]\"", part)
		}
	}
	return out, nil
}

func (q *Query) Validate() error {
	if q == nil {
		return nil
	}
	if q.Limit < 0 || q.Skip < 0 {
		return fmt.Errorf("limit and skip must not be negative")
	}
	_, err := ParseOrder(q.Order)
	return err
}

// Apply orders, pages and projects recs in memory. recs may be reordered.
func (q *Query) Apply(recs []codec.Record) ([]codec.Record, error) {
	if q == nil {
		return recs, nil
	}
	orders, err := ParseOrder(q.Order)
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		slices.SortStableFunc(recs, func(a, b codec.Record) int {
			for _, o := range orders {
				c := CompareValues(a[o.Attribute], b[o.Attribute])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if q.Skip > 0 {
		recs = recs[min(q.Skip, len(recs)):]
	}
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	if len(q.Fields) > 0 {
		for i, rec := range recs {
			projected := make(codec.Record, len(q.Fields))
			for _, f := range q.Fields {
				if v, ok := rec[f]; ok {
					projected[f] = v
				}
			}
			recs[i] = projected
		}
	}
	return recs, nil
}

// CompareValues orders decoded attribute values. Values of different kinds
// order nil < bool < number < string < binary.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch a := a.(type) {
	case bool:
		b := b.(bool)
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		}
		return 1
	case string:
		return strings.Compare(a, b.(string))
	case []byte:
		return bytes.Compare(a, b.([]byte))
	}
	if ra == rankNumber {
		ai, aInt := a.(int64)
		bi, bInt := b.(int64)
		if aInt && bInt {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(toFloat(a), toFloat(b))
	}
	return 0
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankBinary
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int64, float64, int:
		return rankNumber
	case string:
		return rankString
	case []byte:
		return rankBinary
	}
	return rankOther
}

func toFloat(v any) float64 {
	switch v := v.(type) {
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}
