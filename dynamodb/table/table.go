package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableDefinition is the key layout of a single model table.
type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
}

// Throughput is the provisioned capacity used when creating tables.
type Throughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// CreateTableInput builds the CreateTable request for the definition.
// Attribute definitions are emitted for key attributes only, as DynamoDB requires.
func (t TableDefinition) CreateTableInput(tp Throughput) *dynamodb.CreateTableInput {
	k := t.KeyDefinitions
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(t.Name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(k.PartitionKey.Name), AttributeType: k.PartitionKey.Kind.ScalarType()},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(k.PartitionKey.Name), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(tp.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(tp.WriteCapacityUnits),
		},
	}
	if k.HasSortKey() {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(k.SortKey.Name), AttributeType: k.SortKey.Kind.ScalarType(),
		})
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(k.SortKey.Name), KeyType: types.KeyTypeRange,
		})
	}
	return in
}

// DefinitionFromCreateInput is the inverse of CreateTableInput. The local store uses it
// to recover key layouts from CreateTable calls.
func DefinitionFromCreateInput(in *dynamodb.CreateTableInput) (TableDefinition, error) {
	if in == nil || in.TableName == nil || *in.TableName == "" {
		return TableDefinition{}, fmt.Errorf("table name is required")
	}
	kinds := make(map[string]KeyKind, len(in.AttributeDefinitions))
	for _, ad := range in.AttributeDefinitions {
		kinds[aws.ToString(ad.AttributeName)] = KeyKind(ad.AttributeType)
	}
	def := TableDefinition{Name: *in.TableName}
	for _, ks := range in.KeySchema {
		name := aws.ToString(ks.AttributeName)
		kind, ok := kinds[name]
		if !ok {
			return TableDefinition{}, fmt.Errorf("key attribute %q has no attribute definition", name)
		}
		if err := kind.Validate(); err != nil {
			return TableDefinition{}, fmt.Errorf("key attribute %q: %w", name, err)
		}
		switch ks.KeyType {
		case types.KeyTypeHash:
			if def.KeyDefinitions.PartitionKey.Name != "" {
				return TableDefinition{}, fmt.Errorf("more than one HASH key in key schema")
			}
			def.KeyDefinitions.PartitionKey = KeyDef{Name: name, Kind: kind}
		case types.KeyTypeRange:
			if def.KeyDefinitions.SortKey.Name != "" {
				return TableDefinition{}, fmt.Errorf("more than one RANGE key in key schema")
			}
			def.KeyDefinitions.SortKey = KeyDef{Name: name, Kind: kind}
		default:
			return TableDefinition{}, fmt.Errorf("unknown key type %q", ks.KeyType)
		}
	}
	if def.KeyDefinitions.PartitionKey.Name == "" {
		return TableDefinition{}, fmt.Errorf("key schema has no HASH key")
	}
	return def, nil
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if !k.HasSortKey() {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

// KeyAttributes returns the subset of doc that makes up its primary key.
func (k PrimaryKeyDefinition) KeyAttributes(doc map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, 2)
	if v, ok := doc[k.PartitionKey.Name]; ok {
		out[k.PartitionKey.Name] = v
	}
	if k.HasSortKey() {
		if v, ok := doc[k.SortKey.Name]; ok {
			out[k.SortKey.Name] = v
		}
	}
	return out
}

func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		panic(fmt.Sprintf("unsupported attribute value %T for dynamodb keys", v))
	}
}
