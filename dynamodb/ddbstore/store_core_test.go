package ddbstore

import (
	"context"
	"testing"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Test table definitions
var singleTableDesign = table.TableDefinition{
	Name: "test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

var numericSortKeyTable = table.TableDefinition{
	Name: "numeric-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindN},
	},
}

var noSortKeyTable = table.TableDefinition{
	Name: "no-sk-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
	},
}

func newTestStore(t *testing.T, defs ...table.TableDefinition) *Store {
	store, err := New(StoreOptions{InMemory: true, Logger: ZapLogger(zaptest.NewLogger(t))}, defs...)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func strAV(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func numAV(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func put(t *testing.T, store *Store, tableName string, item map[string]types.AttributeValue) {
	t.Helper()
	_, err := store.PutItem(context.Background(), &dynamodb.PutItemInput{TableName: &tableName, Item: item})
	require.NoError(t, err)
}

func TestStore_Tables(t *testing.T) {
	ctx := context.Background()

	t.Run("create describe list delete", func(t *testing.T) {
		store := newTestStore(t)

		in := numericSortKeyTable.CreateTableInput(table.Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 10})
		created, err := store.CreateTable(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, types.TableStatusActive, created.TableDescription.TableStatus)

		_, err = store.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		require.ErrorAs(t, err, &inUse)

		put(t, store, numericSortKeyTable.Name, map[string]types.AttributeValue{"pk": strAV("a"), "sk": numAV("1")})

		desc, err := store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &numericSortKeyTable.Name})
		require.NoError(t, err)
		assert.Equal(t, int64(1), aws.ToInt64(desc.Table.ItemCount))
		assert.Equal(t, int64(5), aws.ToInt64(desc.Table.ProvisionedThroughput.ReadCapacityUnits))
		assert.Equal(t, in.KeySchema, desc.Table.KeySchema)

		list, err := store.ListTables(ctx, &dynamodb.ListTablesInput{})
		require.NoError(t, err)
		assert.Equal(t, []string{numericSortKeyTable.Name}, list.TableNames)

		_, err = store.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: &numericSortKeyTable.Name})
		require.NoError(t, err)
		_, err = store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &numericSortKeyTable.Name})
		assert.True(t, IsNotFound(err))

		// Recreating the table starts empty.
		_, err = store.CreateTable(ctx, in)
		require.NoError(t, err)
		desc, err = store.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &numericSortKeyTable.Name})
		require.NoError(t, err)
		assert.Equal(t, int64(0), aws.ToInt64(desc.Table.ItemCount))
	})

	t.Run("list tables pages", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign, numericSortKeyTable, noSortKeyTable)

		first, err := store.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"no-sk-table", "numeric-sk-table"}, first.TableNames)
		require.NotNil(t, first.LastEvaluatedTableName)

		second, err := store.ListTables(ctx, &dynamodb.ListTablesInput{
			Limit:                   aws.Int32(2),
			ExclusiveStartTableName: first.LastEvaluatedTableName,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"test-table"}, second.TableNames)
		assert.Nil(t, second.LastEvaluatedTableName)
	})

	t.Run("unknown table", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String("missing"),
			Key:       map[string]types.AttributeValue{"pk": strAV("a")},
		})
		assert.True(t, IsNotFound(err))
	})

	t.Run("tables persist across reopen", func(t *testing.T) {
		dir := t.TempDir()
		store, err := New(StoreOptions{Path: dir}, noSortKeyTable)
		require.NoError(t, err)
		put(t, store, noSortKeyTable.Name, map[string]types.AttributeValue{"pk": strAV("kept")})
		require.NoError(t, store.Close())

		store, err = New(StoreOptions{Path: dir})
		require.NoError(t, err)
		defer store.Close()
		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &noSortKeyTable.Name,
			Key:       map[string]types.AttributeValue{"pk": strAV("kept")},
		})
		require.NoError(t, err)
		assert.Equal(t, strAV("kept"), got.Item["pk"])
	})
}

func TestKeyEncoder_NumberOrdering(t *testing.T) {
	nums := []string{"-100", "-1.5", "-1", "0", "0.25", "1", "2", "10", "1e3"}
	var prev []byte
	for _, num := range nums {
		enc, err := encodeKeyValue(num, table.KeyKindN)
		require.NoError(t, err)
		if prev != nil {
			assert.Less(t, string(prev), string(enc), num)
		}
		prev = enc
	}
}

func TestSerializeItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"s":    strAV("x"),
		"n":    numAV("1.5"),
		"b":    &types.AttributeValueMemberB{Value: []byte{0, 1, 2}},
		"bool": &types.AttributeValueMemberBOOL{Value: true},
		"null": &types.AttributeValueMemberNULL{Value: true},
		"ss":   &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"ns":   &types.AttributeValueMemberNS{Value: []string{"1"}},
		"bs":   &types.AttributeValueMemberBS{Value: [][]byte{{1}}},
		"l":    &types.AttributeValueMemberL{Value: []types.AttributeValue{strAV("a"), numAV("2")}},
		"m":    &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"k": strAV("v")}},
	}
	data, err := SerializeItem(item)
	require.NoError(t, err)
	got, err := DeserializeItem(data)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}
