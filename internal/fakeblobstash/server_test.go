package fakeblobstash

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Fatalf("Failed to stop server: %v", err)
		}
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(server.URL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestServer(t *testing.T) {
	server := NewServer("127.0.0.1:0")
	server.AddStubResponse(SimpleStubResponse(http.MethodGet, "/api/docstore/", map[string]any{
		"collections": []string{"users"},
	}))

	require.NoError(t, server.Start())
	assert.NotEmpty(t, server.Address())
	assert.True(t, strings.HasPrefix(server.URL(), "http://127.0.0.1:"))
	require.NoError(t, server.Stop())
}

func TestStubResponses(t *testing.T) {
	server := startServer(t)

	server.AddStubResponse(SimpleStubResponse(http.MethodGet, "/api/docstore/", map[string]any{
		"collections": []string{"stubbed"},
	}))
	status, body := get(t, server, "/api/docstore/")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"collections":["stubbed"]}`, string(body))

	server.ClearStubResponses()
	server.AddStubResponse(ErrorStubResponse(http.MethodGet, "/api/docstore/", http.StatusServiceUnavailable, "down"))
	status, body = get(t, server, "/api/docstore/")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"error":"down"}`, string(body))

	server.ClearStubResponses()
	status, body = get(t, server, "/api/docstore/")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"collections":[]}`, string(body))
}

func TestStubMatcher(t *testing.T) {
	server := startServer(t)
	server.AddStubResponse(StubResponse{
		Matcher: RequestMatcher{
			Method: http.MethodGet,
			Matcher: func(r *http.Request) bool {
				return r.URL.Query().Get("query") != ""
			},
		},
		Body: map[string]any{"data": []any{}, "pagination": map[string]any{"has_more": false}},
	})

	status, body := get(t, server, "/api/docstore/users?query=doc.x+%3D%3D+1")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data":[],"pagination":{"has_more":false}}`, string(body))

	status, _ = get(t, server, "/api/docstore/users/missing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuthentication(t *testing.T) {
	server := NewServer("127.0.0.1:0")
	server.APIKey = "secret"
	require.NoError(t, server.Start())
	defer func() {
		if stopErr := server.Stop(); stopErr != nil {
			t.Fatalf("Failed to stop server: %v", stopErr)
		}
	}()

	status, _ := get(t, server, "/api/docstore/")
	assert.Equal(t, http.StatusUnauthorized, status)

	req, err := http.NewRequest(http.MethodGet, server.URL()+"/api/docstore/", http.NoBody)
	require.NoError(t, err)
	req.SetBasicAuth("", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFailureInjection(t *testing.T) {
	t.Run("drop connection", func(t *testing.T) {
		server := startServer(t)
		server.SetGlobalFailures([]FailureConfig{{Type: FailureDropConnection, Probability: 1}})

		_, err := http.Get(server.URL() + "/api/docstore/")
		assert.Error(t, err)
	})

	t.Run("partial message", func(t *testing.T) {
		server := startServer(t)
		server.AddStubResponse(StubResponse{
			Matcher:  Match(http.MethodGet, "/api/docstore/"),
			Body:     map[string]any{"collections": []string{"a", "b", "c"}},
			Failures: []FailureConfig{{Type: FailurePartialMessage, Probability: 1}},
		})

		_, body := get(t, server, "/api/docstore/")
		var decoded map[string]any
		assert.Error(t, json.Unmarshal(body, &decoded))
	})

	t.Run("request delay", func(t *testing.T) {
		server := startServer(t)
		server.SetGlobalFailures([]FailureConfig{{
			Type:        FailureRequestDelay,
			Probability: 1,
			MinDelay:    50 * time.Millisecond,
			MaxDelay:    50 * time.Millisecond,
		}})

		start := time.Now()
		status, _ := get(t, server, "/api/docstore/")
		assert.Equal(t, http.StatusOK, status)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})
}

func TestLuaToExpr(t *testing.T) {
	tests := []struct {
		name string
		lua  string
		want string
	}{
		{"not equal", `doc.a ~= 1`, `doc.a != 1`},
		{"index", `doc.tags[1] == "x"`, `doc.tags[0] == "x"`},
		{"nested index", `doc.m[2][3].v >= 1.5`, `doc.m[1][2].v >= 1.5`},
		{"string untouched", `doc.a == "[1] ~= b"`, `doc.a == "[1] ~= b"`},
		{"escapes", `doc.a == "a\"b\\c\001"`, `doc.a == "a\"b\\c\x01"`},
		{"in_list", `in_list(doc.l, 2, "id")`, `in_list(doc.l, 2, "id")`},
		{"composite", `not (doc.a == 1 or doc.b == nil)`, `not (doc.a == 1 or doc.b == nil)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := luaToExpr(tt.lua)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := luaToExpr(`doc.a == "open`)
	assert.Error(t, err)
	_, err = luaToExpr(`doc.a[x] == 1`)
	assert.Error(t, err)
}

func TestCompilePredicate(t *testing.T) {
	doc := map[string]any{
		"name": "Alice",
		"age":  float64(31),
		"tags": []any{"admin", "ops"},
		"pets": []any{
			map[string]any{"kind": "cat", "name": "Tom"},
			map[string]any{"kind": "dog", "name": "Rex"},
		},
		"address": map[string]any{"city": "Paris"},
	}

	tests := []struct {
		lua  string
		want bool
	}{
		{`doc.name == "Alice"`, true},
		{`doc.age > 30`, true},
		{`doc.age ~= 31`, false},
		{`doc.tags[2] == "ops"`, true},
		{`doc.address.city == "Paris" and doc.age <= 31`, true},
		{`doc.missing == nil`, true},
		{`in_list(doc.tags, "admin")`, true},
		{`in_list(doc.tags, "root")`, false},
		{`in_list(doc.pets, "Rex", "name")`, true},
		{`in_list(doc.pets, "bird", "kind")`, false},
		{`not (doc.name == "Bob" or doc.age < 18)`, true},
		{`doc.nothing.deeper == 1`, false},
		{`true`, true},
		{`false`, false},
	}
	for _, tt := range tests {
		t.Run(tt.lua, func(t *testing.T) {
			match, err := compilePredicate(tt.lua)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match(doc))
		})
	}
}

func TestDocumentLifecycle(t *testing.T) {
	server := startServer(t)

	resp, err := http.Post(server.URL()+"/api/docstore/notes", "application/json", strings.NewReader(`{"title":"a","_id":"ignored"}`))
	require.NoError(t, err)
	var ident map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ident))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := ident["_id"].(string)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "ignored", id)
	assert.Equal(t, 1, server.DocumentCount("notes"))

	hash, ok := server.Fingerprint("notes", id)
	require.True(t, ok)
	assert.Equal(t, ident["_hash"], hash)

	patchReq := func(ifMatch string) int {
		req, err := http.NewRequest(http.MethodPatch, server.URL()+"/api/docstore/notes/"+id,
			strings.NewReader(`[{"op":"replace","path":"/title","value":"b"}]`))
		require.NoError(t, err)
		req.Header.Set("If-Match", ifMatch)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, patchReq(hash))
	assert.Equal(t, http.StatusPreconditionFailed, patchReq(hash))

	status, body := get(t, server, "/api/docstore/notes/"+id)
	assert.Equal(t, http.StatusOK, status)
	var got struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "b", got.Data["title"])

	status, body = get(t, server, "/api/docstore/notes/"+id+"/_versions")
	assert.Equal(t, http.StatusOK, status)
	var versions struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &versions))
	require.Len(t, versions.Data, 2)
	assert.Equal(t, "b", versions.Data[0]["title"])
	assert.Equal(t, "a", versions.Data[1]["title"])
}

func TestQueryScriptRejected(t *testing.T) {
	server := startServer(t)
	status, _ := get(t, server, "/api/docstore/notes?script=return+true")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = get(t, server, "/api/docstore/notes?stored_query=nope")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestKVStore(t *testing.T) {
	server := startServer(t)

	put := func(data string, version string) int {
		form := url.Values{"data": {data}, "ref": {""}, "version": {version}}
		resp, err := http.PostForm(server.URL()+"/api/kvstore/key/greeting", form)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, put("hello", "10"))
	assert.Equal(t, http.StatusOK, put("hi", "20"))
	assert.Equal(t, http.StatusConflict, put("stale", "15"))

	status, body := get(t, server, "/api/kvstore/key/greeting")
	assert.Equal(t, http.StatusOK, status)
	var kv keyValue
	require.NoError(t, json.Unmarshal(body, &kv))
	assert.Equal(t, int64(20), kv.Version)
	assert.Equal(t, "hi", string(kv.Data))

	status, body = get(t, server, "/api/kvstore/key/greeting/_versions?limit=1")
	assert.Equal(t, http.StatusOK, status)
	var page struct {
		Data       []keyValue `json:"data"`
		Pagination pageInfo   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(20), page.Data[0].Version)
	assert.True(t, page.Pagination.HasMore)
	assert.Equal(t, "1", page.Pagination.Cursor)

	status, _ = get(t, server, "/api/kvstore/key/missing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadRejectsHashMismatch(t *testing.T) {
	server := startServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("deadbeef", "deadbeef")
	require.NoError(t, err)
	_, err = part.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(server.URL()+"/api/blobstore/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, server.BlobCount())

	hash := server.AddBlob([]byte("content"))
	status, body := get(t, server, "/api/blobstore/blob/"+hash)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "content", string(body))
}
