package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/acksell/ddbmodel/dynamodb/codec"
	"github.com/acksell/ddbmodel/dynamodb/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_CreateFind(t *testing.T) {
	ctx := context.Background()
	a, _ := definedAdapter(t)

	_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "1", "name": "John Doe", "age": 20})
	require.NoError(t, err)

	t.Run("by hash and range", func(t *testing.T) {
		rec, err := a.Find(ctx, "User", Key{Hash: "users", Range: "1"})
		require.NoError(t, err)
		assert.Equal(t, "John Doe", rec["name"])
		assert.Equal(t, int64(20), rec["age"])
		assert.Equal(t, "users", rec["realm"])
		assert.Equal(t, "1", rec["id"])
	})

	t.Run("by hash returns first of partition", func(t *testing.T) {
		_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "0", "name": "First"})
		require.NoError(t, err)
		_, err = a.Create(ctx, "User", codec.Record{"realm": "users", "id": "2", "name": "Last"})
		require.NoError(t, err)

		rec, err := a.Find(ctx, "User", Key{Hash: "users"})
		require.NoError(t, err)
		assert.Equal(t, "First", rec["name"])
	})

	t.Run("missing", func(t *testing.T) {
		_, err := a.Find(ctx, "User", Key{Hash: "users", Range: "nope"})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = a.Find(ctx, "User", Key{Hash: "nobody"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nil hash key", func(t *testing.T) {
		_, err := a.Find(ctx, "User", Key{Range: "1"})
		assert.ErrorContains(t, err, `hash key "realm" is required`)
		assert.ErrorIs(t, err, ErrInvalidKey)
		_, err = a.Create(ctx, "User", codec.Record{"id": "9", "name": "x"})
		assert.ErrorContains(t, err, `key attribute "realm" is required`)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("range on a hash only model", func(t *testing.T) {
		_, err := a.Find(ctx, "Post", Key{Hash: "a", Range: "b"})
		assert.ErrorContains(t, err, "no range key")
	})

	t.Run("null attributes round trip", func(t *testing.T) {
		_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "n", "nickname": nil})
		require.NoError(t, err)
		rec, err := a.Find(ctx, "User", Key{Hash: "users", Range: "n"})
		require.NoError(t, err)
		require.Contains(t, rec, "nickname")
		assert.Nil(t, rec["nickname"])
	})

	t.Run("create does not modify its input", func(t *testing.T) {
		in := codec.Record{"realm": "users", "id": "c", "field": "abc"}
		_, err := a.Create(ctx, "User", in)
		require.NoError(t, err)
		assert.Equal(t, codec.Record{"realm": "users", "id": "c", "field": "abc"}, in)
	})
}

func TestAdapter_UUID(t *testing.T) {
	ctx := context.Background()

	t.Run("generated when absent", func(t *testing.T) {
		var n int
		a, _ := definedAdapter(t, WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("post-%d", n)
		}))
		rec, err := a.Create(ctx, "Post", codec.Record{"title": "hello"})
		require.NoError(t, err)
		assert.Equal(t, "post-1", rec["id"])

		rec, err = a.Create(ctx, "Post", codec.Record{"id": "mine", "title": "kept"})
		require.NoError(t, err)
		assert.Equal(t, "mine", rec["id"])

		found, err := a.Find(ctx, "Post", Key{Hash: "post-1"})
		require.NoError(t, err)
		assert.Equal(t, "hello", found["title"])
	})

	t.Run("default generator", func(t *testing.T) {
		a, _ := definedAdapter(t)
		rec, err := a.Create(ctx, "Post", codec.Record{"title": "hello"})
		require.NoError(t, err)
		_, err = uuid.Parse(rec["id"].(string))
		assert.NoError(t, err)
	})
}

func TestAdapter_Chunking(t *testing.T) {
	ctx := context.Background()
	a, store := definedAdapter(t)
	big := strings.Repeat("x", 150000)

	stored, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "big", "field": big})
	require.NoError(t, err)
	assert.NotContains(t, stored, "field")
	assert.Contains(t, stored, "field3")

	t.Run("stored as numbered parts", func(t *testing.T) {
		item := rawItem(t, store, "User", userKey("users", "big"))
		for _, name := range []string{"field1", "field2", "field3"} {
			assert.Contains(t, item, name)
		}
		assert.NotContains(t, item, "field")
		assert.NotContains(t, item, "field4")
	})

	t.Run("joined on read", func(t *testing.T) {
		rec, err := a.Find(ctx, "User", Key{Hash: "users", Range: "big"})
		require.NoError(t, err)
		assert.Equal(t, big, rec["field"])
		assert.NotContains(t, rec, "field1")

		all, err := a.All(ctx, "User", nil)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, big, all[0]["field"])
	})

	t.Run("update clears stale parts", func(t *testing.T) {
		rec, err := a.UpdateAttributes(ctx, "User", Key{Hash: "users", Range: "big"}, codec.Record{"field": "short"})
		require.NoError(t, err)
		assert.Equal(t, "short", rec["field"])

		item := rawItem(t, store, "User", userKey("users", "big"))
		assert.Contains(t, item, "field1")
		assert.NotContains(t, item, "field2")
		assert.NotContains(t, item, "field3")
	})

	t.Run("fixed piece count", func(t *testing.T) {
		stored, err := a.Create(ctx, "Post", codec.Record{"id": "p1", "body": "abcdef"})
		require.NoError(t, err)
		assert.Equal(t, codec.Record{"id": "p1", "body1": "ab", "body2": "cd", "body3": "ef"}, stored)

		// Too short for three pieces: the empty leading piece is not written.
		stored, err = a.Create(ctx, "Post", codec.Record{"id": "p2", "body": "ab"})
		require.NoError(t, err)
		assert.NotContains(t, stored, "body1")
		rec, err := a.Find(ctx, "Post", Key{Hash: "p2"})
		require.NoError(t, err)
		assert.Equal(t, "ab", rec["body"])
	})
}

func TestAdapter_UpdateAttributes(t *testing.T) {
	ctx := context.Background()
	a, _ := definedAdapter(t)
	_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "1", "name": "John", "age": 20, "nickname": "jd"})
	require.NoError(t, err)

	t.Run("changes only the given fields", func(t *testing.T) {
		rec, err := a.UpdateAttributes(ctx, "User", Key{Hash: "users", Range: "1"}, codec.Record{
			"name":     "Jane",
			"realm":    "elsewhere",
			"nickname": nil,
		})
		require.NoError(t, err)
		assert.Equal(t, codec.Record{
			"realm":    "users",
			"id":       "1",
			"name":     "Jane",
			"age":      int64(20),
			"nickname": "jd",
		}, rec)

		found, err := a.Find(ctx, "User", Key{Hash: "users", Range: "1"})
		require.NoError(t, err)
		assert.Equal(t, rec, found)
	})

	t.Run("range key required", func(t *testing.T) {
		_, err := a.UpdateAttributes(ctx, "User", Key{Hash: "users"}, codec.Record{"name": "x"})
		assert.ErrorContains(t, err, `range key "id" is required`)
	})
}

func TestAdapter_Destroy(t *testing.T) {
	ctx := context.Background()
	a, _ := definedAdapter(t)
	_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "1", "name": "John", "field": "long text"})
	require.NoError(t, err)

	old, err := a.Destroy(ctx, "User", Key{Hash: "users", Range: "1"})
	require.NoError(t, err)
	assert.Equal(t, "John", old["name"])
	assert.Equal(t, "long text", old["field"])

	_, err = a.Find(ctx, "User", Key{Hash: "users", Range: "1"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = a.Destroy(ctx, "User", Key{Hash: "users", Range: "1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdapter_Exists(t *testing.T) {
	ctx := context.Background()
	a, _ := definedAdapter(t)
	_, err := a.Create(ctx, "User", codec.Record{"realm": "users", "id": "1"})
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		key  Key
		want bool
	}{
		{"full key", Key{Hash: "users", Range: "1"}, true},
		{"partition", Key{Hash: "users"}, true},
		{"missing range", Key{Hash: "users", Range: "2"}, false},
		{"missing partition", Key{Hash: "admins"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := a.Exists(ctx, "User", tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}

	_, err = a.Exists(ctx, "User", Key{})
	assert.Error(t, err)
}

func TestAdapter_ParseKey(t *testing.T) {
	ctx := context.Background()
	a, _ := definedAdapter(t)
	require.NoError(t, a.Define(ctx, schema.Model{Name: "Reading", Properties: map[string]schema.Property{
		"sensor": {Type: schema.Binary, KeyType: schema.KeyHash},
		"at":     {Type: schema.Number, KeyType: schema.KeyRange},
	}}))

	k, err := a.ParseKey("User", "users", "1")
	require.NoError(t, err)
	assert.Equal(t, Key{Hash: "users", Range: "1"}, k)

	k, err = a.ParseKey("Reading", "s1", "1700000000")
	require.NoError(t, err)
	assert.Equal(t, Key{Hash: []byte("s1"), Range: json.Number("1700000000")}, k)

	_, err = a.Create(ctx, "Reading", codec.Record{"sensor": []byte("s1"), "at": 1700000000, "value": 3.5})
	require.NoError(t, err)
	rec, err := a.Find(ctx, "Reading", k)
	require.NoError(t, err)
	assert.Equal(t, 3.5, rec["value"])

	_, err = a.ParseKey("Post", "p1", "x")
	assert.ErrorContains(t, err, "no range key")
	_, err = a.ParseKey("User", "users", "1", "2")
	assert.Error(t, err)
	_, err = a.ParseKey("Nope", "x")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
