package codec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/acksell/ddbmodel/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want types.AttributeValue
	}{
		{"string", "foobar", &types.AttributeValueMemberS{Value: "foobar"}},
		{"int", 20, &types.AttributeValueMemberN{Value: "20"}},
		{"negative int", int32(-7), &types.AttributeValueMemberN{Value: "-7"}},
		{"uint64", uint64(math.MaxUint64), &types.AttributeValueMemberN{Value: "18446744073709551615"}},
		{"float", 1.5, &types.AttributeValueMemberN{Value: "1.5"}},
		{"float32", float32(0.1), &types.AttributeValueMemberN{Value: "0.1"}},
		{"json number", json.Number("42"), &types.AttributeValueMemberN{Value: "42"}},
		{"binary", []byte{0x00, 0x01}, &types.AttributeValueMemberB{Value: []byte{0x00, 0x01}}},
		{"bool", true, &types.AttributeValueMemberBOOL{Value: true}},
		{"nil", nil, &types.AttributeValueMemberNULL{Value: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshal_Unsupported(t *testing.T) {
	_, err := Marshal(make(chan int))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Marshal(math.NaN())
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Marshal(json.Number("twenty"))
	require.Error(t, err)
}

func TestMarshal_FallsBackToAttributeValue(t *testing.T) {
	got, err := Marshal([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberS{Value: "a"},
		&types.AttributeValueMemberS{Value: "b"},
	}}, got)
}

func TestScalarRoundTrip(t *testing.T) {
	for _, v := range []any{"", "John Doe", int64(20), int64(-3), 2.25, []byte("raw"), true, nil} {
		av, err := Marshal(v)
		require.NoError(t, err)
		got, err := Unmarshal(av)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestUnmarshal_NumbersNormalize(t *testing.T) {
	got, err := Unmarshal(&types.AttributeValueMemberN{Value: "20"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), got)

	got, err = Unmarshal(&types.AttributeValueMemberN{Value: "1e3"})
	require.NoError(t, err)
	assert.Equal(t, float64(1000), got)

	_, err = Unmarshal(&types.AttributeValueMemberN{Value: "abc"})
	require.Error(t, err)
}

func TestUnmarshal_Sets(t *testing.T) {
	got, err := Unmarshal(&types.AttributeValueMemberNS{Value: []string{"1", "2.5"}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5}, got)

	got, err = Unmarshal(&types.AttributeValueMemberSS{Value: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func TestDocumentRoundTrip(t *testing.T) {
	rec := Record{
		"realm": "users",
		"id":    "1",
		"name":  "John Doe",
		"age":   int64(20),
		"tags":  []any{"a", int64(1)},
		"meta":  map[string]any{"score": 0.5},
	}
	item, err := MarshalItem(rec)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "20"}, item["age"])

	got, err := UnmarshalItem(item)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestMarshalItem_DoesNotMutate(t *testing.T) {
	rec := Record{"a": 1}
	_, err := MarshalItem(rec)
	require.NoError(t, err)
	assert.Equal(t, Record{"a": 1}, rec)
}

func TestMarshalList(t *testing.T) {
	got, err := MarshalList([]any{"someword", 20})
	require.NoError(t, err)
	assert.Equal(t, []types.AttributeValue{
		&types.AttributeValueMemberS{Value: "someword"},
		&types.AttributeValueMemberN{Value: "20"},
	}, got)

	back, err := UnmarshalList(got)
	require.NoError(t, err)
	assert.Equal(t, []any{"someword", int64(20)}, back)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("")
	require.True(t, ok)
	assert.Equal(t, table.KeyKindS, k)
	k, ok = KindOf(float64(0))
	require.True(t, ok)
	assert.Equal(t, table.KeyKindN, k)
	k, ok = KindOf([]byte{})
	require.True(t, ok)
	assert.Equal(t, table.KeyKindB, k)
	_, ok = KindOf(false)
	assert.False(t, ok)
}

type book struct {
	Subject string `dynamodbav:"subject"`
	ID      string `dynamodbav:"id"`
	Pages   int    `dynamodbav:"pages"`
}

func TestStructBinding(t *testing.T) {
	rec, err := FromStruct(book{Subject: "Wildlife", ID: "bca", Pages: 12})
	require.NoError(t, err)
	assert.Equal(t, Record{"subject": "Wildlife", "id": "bca", "pages": int64(12)}, rec)

	var b book
	require.NoError(t, ToStruct(rec, &b))
	assert.Equal(t, book{Subject: "Wildlife", ID: "bca", Pages: 12}, b)
}
