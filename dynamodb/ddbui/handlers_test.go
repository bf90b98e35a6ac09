package ddbui

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/acksell/ddbmodel/dynamodb/adapter"
	"github.com/acksell/ddbmodel/dynamodb/chunk"
	"github.com/acksell/ddbmodel/dynamodb/ddbstore"
	"github.com/acksell/ddbmodel/dynamodb/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true, Logger: ddbstore.ZapLogger(log)})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	a := adapter.New(store, adapter.WithLogger(log), adapter.WithIDGenerator(func() string { return "generated" }))
	ctx := context.Background()
	require.NoError(t, a.Define(ctx, schema.Model{Name: "User", Properties: map[string]schema.Property{
		"realm": {Type: schema.String, KeyType: schema.KeyHash},
		"id":    {Type: schema.String, KeyType: schema.KeyRange},
		"age":   {Type: schema.Number},
		"bio":   {Type: schema.String, Chunk: &chunk.Directive{Count: 2}},
	}}))
	require.NoError(t, a.Define(ctx, schema.Model{Name: "Note", Table: "notes", Properties: map[string]schema.Property{
		"id":   {Type: schema.String, KeyType: schema.KeyHash, UUID: true},
		"text": {Type: schema.String},
	}}))

	srv := httptest.NewServer(NewServer(a, "", log).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func seed(t *testing.T, srv *httptest.Server) {
	t.Helper()
	for _, body := range []string{
		`{"realm":"users","id":"1","age":20,"bio":"abcd"}`,
		`{"realm":"users","id":"2","age":30}`,
		`{"realm":"admins","id":"1","age":40}`,
	} {
		status, _ := do(t, srv, http.MethodPost, "/api/models/User/records", body)
		require.Equal(t, http.StatusCreated, status)
	}
}

func TestAPI_Models(t *testing.T) {
	srv := newTestServer(t)

	status, out := do(t, srv, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["models"], 2)

	status, out = do(t, srv, http.MethodGet, "/api/models/User", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "realm", out["hashKey"])
	assert.Equal(t, "id", out["rangeKey"])
	assert.Equal(t, map[string]any{"bio": "2 pieces"}, out["chunks"])

	status, out = do(t, srv, http.MethodGet, "/api/models/Nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, out["error"], "unknown model")
}

func TestAPI_Records(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	t.Run("find", func(t *testing.T) {
		status, rec := do(t, srv, http.MethodGet, "/api/models/User/records/users/1", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "abcd", rec["bio"])
		assert.Equal(t, float64(20), rec["age"])

		status, _ = do(t, srv, http.MethodGet, "/api/models/User/records/users/9", "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("find by hash only", func(t *testing.T) {
		status, rec := do(t, srv, http.MethodGet, "/api/models/User/records/admins", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "admins", rec["realm"])
	})

	t.Run("all", func(t *testing.T) {
		where := url.QueryEscape(`{"realm":"users"}`)
		status, out := do(t, srv, http.MethodGet, "/api/models/User/records?where="+where+"&order=age%20DESC&fields=id", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{map[string]any{"id": "2"}, map[string]any{"id": "1"}}, out["records"])

		status, out = do(t, srv, http.MethodGet, "/api/models/User/records?limit=1&skip=1&order=age", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), out["count"])
	})

	t.Run("count", func(t *testing.T) {
		where := url.QueryEscape(`{"age":{"gt":25}}`)
		status, out := do(t, srv, http.MethodGet, "/api/models/User/count?where="+where, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), out["count"])
	})

	t.Run("update", func(t *testing.T) {
		status, rec := do(t, srv, http.MethodPatch, "/api/models/User/records/users/2", `{"age":31}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(31), rec["age"])
		assert.Equal(t, "2", rec["id"])
	})

	t.Run("save replaces", func(t *testing.T) {
		status, _ := do(t, srv, http.MethodPut, "/api/models/User/records", `{"realm":"users","id":"2"}`)
		require.Equal(t, http.StatusOK, status)
		_, rec := do(t, srv, http.MethodGet, "/api/models/User/records/users/2", "")
		assert.NotContains(t, rec, "age")
	})

	t.Run("destroy", func(t *testing.T) {
		status, old := do(t, srv, http.MethodDelete, "/api/models/User/records/admins/1", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(40), old["age"])

		status, _ = do(t, srv, http.MethodDelete, "/api/models/User/records/admins/1", "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("destroy all", func(t *testing.T) {
		status, out := do(t, srv, http.MethodPost, "/api/models/User/destroy", `{"realm":"users"}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), out["deleted"])

		_, out = do(t, srv, http.MethodGet, "/api/models/User/count", "")
		assert.Equal(t, float64(0), out["count"])
	})
}

func TestAPI_UUIDKey(t *testing.T) {
	srv := newTestServer(t)
	status, rec := do(t, srv, http.MethodPost, "/api/models/Note/records", `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "generated", rec["id"])

	status, rec = do(t, srv, http.MethodGet, "/api/models/Note/records/generated", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hi", rec["text"])
}

func TestAPI_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed body", http.MethodPost, "/api/models/User/records", `{"realm":`, http.StatusBadRequest},
		{"array body", http.MethodPost, "/api/models/User/records", `[1]`, http.StatusBadRequest},
		{"missing key", http.MethodPost, "/api/models/User/records", `{"realm":"users"}`, http.StatusBadRequest},
		{"unsupported operator", http.MethodGet, "/api/models/User/records?where=" + url.QueryEscape(`{"age":{"nin":[1]}}`), "", http.StatusBadRequest},
		{"malformed where", http.MethodGet, "/api/models/User/count?where=nope", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/models/User/records?limit=ten", "", http.StatusBadRequest},
		{"bad order", http.MethodGet, "/api/models/User/records?order=age%20up", "", http.StatusBadRequest},
		{"range on hash only model", http.MethodGet, "/api/models/Note/records/a/b", "", http.StatusBadRequest},
		{"unknown model", http.MethodPost, "/api/models/Nope/records", `{}`, http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			status, out := do(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, status)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestServer_Serve(t *testing.T) {
	log := zaptest.NewLogger(t)
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true, Logger: ddbstore.ZapLogger(log)})
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(adapter.New(store), "", log).Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
