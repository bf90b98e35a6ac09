package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // zero value when the table has no sort key
}

func (k PrimaryKeyDefinition) HasSortKey() bool {
	return k.SortKey.Name != ""
}

// IsKey reports whether attr is the partition or sort key attribute.
func (k PrimaryKeyDefinition) IsKey(attr string) bool {
	return attr == k.PartitionKey.Name || (k.HasSortKey() && attr == k.SortKey.Name)
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

func (k KeyKind) Validate() error {
	switch k {
	case KeyKindS, KeyKindN, KeyKindB:
		return nil
	}
	return fmt.Errorf("invalid key kind %q, must be one of S, N, B", k)
}

func (k KeyKind) ScalarType() types.ScalarAttributeType {
	return types.ScalarAttributeType(k)
}

// PrimaryKeyValues holds raw key values: strings for S and N keys, []byte for B keys.
type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB converts the key back into DynamoDB attribute values.
func (k PrimaryKey) DDB() map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: rawToAV(k.Definition.PartitionKey.Kind, k.Values.PartitionKey),
	}
	if k.Definition.HasSortKey() {
		out[k.Definition.SortKey.Name] = rawToAV(k.Definition.SortKey.Kind, k.Values.SortKey)
	}
	return out
}

func rawToAV(kind KeyKind, v any) types.AttributeValue {
	switch kind {
	case KeyKindS:
		return &types.AttributeValueMemberS{Value: v.(string)}
	case KeyKindN:
		return &types.AttributeValueMemberN{Value: v.(string)}
	case KeyKindB:
		return &types.AttributeValueMemberB{Value: v.([]byte)}
	default:
		panic(fmt.Sprintf("unsupported key kind %q", kind))
	}
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
