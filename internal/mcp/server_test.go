package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFakeDaemon(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newBridgeServer(t *testing.T, daemonURL string) *Server {
	t.Helper()
	s, err := NewServer(&Config{
		DaemonURL: daemonURL,
		Timeout:   2 * time.Second,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	return s
}

func textContent(t *testing.T, content sdk.Content) string {
	t.Helper()
	tc, ok := content.(*sdk.TextContent)
	require.True(t, ok, "content should be text")
	return tc.Text
}

func TestClient_Query(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string

	daemon := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(QueryResult{
			Links:  []string{"file:///docs/a.txt"},
			Output: "relevant context",
		})
	})

	client := NewClient(daemon.URL, time.Second)
	result, err := client.Query(context.Background(), "find me things", "work")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/query", gotPath)
	assert.Equal(t, map[string]string{"text": "find me things", "pool": "work"}, gotBody)
	assert.Equal(t, []string{"file:///docs/a.txt"}, result.Links)
	assert.Equal(t, "relevant context", result.Output)
}

func TestClient_QueryDaemonError(t *testing.T) {
	daemon := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"pool does not exist: \"nowhere\""}`))
	})

	client := NewClient(daemon.URL, time.Second)
	_, err := client.Query(context.Background(), "query", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "pool does not exist")
}

func TestClient_QueryDaemonUnreachable(t *testing.T) {
	daemon := httptest.NewServer(http.NotFoundHandler())
	daemon.Close()

	client := NewClient(daemon.URL, time.Second)
	_, err := client.Query(context.Background(), "query", "")
	require.Error(t, err)
}

func TestHandleRAGQuery(t *testing.T) {
	daemon := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(QueryResult{
			Links:  []string{"file:///Users/me/Documents/work/a.txt", "file:///Users/me/Documents/work/b.txt"},
			Output: "first chunk.\n\n\n second chunk",
		})
	})
	server := newBridgeServer(t, daemon.URL)

	result, output, err := server.handleRAGQuery(context.Background(), nil, ragQueryInput{
		Text: "migration notes",
		Pool: "work",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 2)

	links := textContent(t, result.Content[0])
	assert.Contains(t, links, "# Relevant files:")
	assert.Contains(t, links, "* [/Users/me/Documents/work/a.txt](file:///Users/me/Documents/work/a.txt)")
	assert.Contains(t, links, "* [/Users/me/Documents/work/b.txt](file:///Users/me/Documents/work/b.txt)")

	ctx := textContent(t, result.Content[1])
	assert.Equal(t, "# Relevant context:\n\nfirst chunk.\n\n\n second chunk", ctx)

	assert.Equal(t, []string{
		"file:///Users/me/Documents/work/a.txt",
		"file:///Users/me/Documents/work/b.txt",
	}, output.Links)
	assert.Equal(t, "first chunk.\n\n\n second chunk", output.Output)
}

func TestHandleRAGQuery_EmptyText(t *testing.T) {
	server := newBridgeServer(t, "http://localhost:1")

	_, _, err := server.handleRAGQuery(context.Background(), nil, ragQueryInput{Pool: "work"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text is required")
}

func TestHandleRAGQuery_DaemonFailure(t *testing.T) {
	daemon := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"search failed"}`))
	})
	server := newBridgeServer(t, daemon.URL)

	_, _, err := server.handleRAGQuery(context.Background(), nil, ragQueryInput{Text: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestHandleRAGQuery_NoLinks(t *testing.T) {
	daemon := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(QueryResult{Links: []string{}, Output: ""})
	})
	server := newBridgeServer(t, daemon.URL)

	result, output, err := server.handleRAGQuery(context.Background(), nil, ragQueryInput{Text: "nothing matches"})
	require.NoError(t, err)

	assert.Equal(t, "# Relevant files:\n\n", textContent(t, result.Content[0]))
	assert.NotNil(t, output.Links)
	assert.Empty(t, output.Links)
}

func TestRenderLinks(t *testing.T) {
	assert.Equal(t, "# Relevant files:\n\n", renderLinks(nil))
	assert.Equal(t,
		"# Relevant files:\n\n* [/a.txt](file:///a.txt)\n* [/b.txt](file:///b.txt)",
		renderLinks([]string{"file:///a.txt", "file:///b.txt"}),
	)
}

func TestNewServer_Defaults(t *testing.T) {
	server, err := NewServer(nil)
	require.NoError(t, err)
	assert.NotNil(t, server.mcp)
	assert.Equal(t, "http://localhost:8001", server.client.baseURL)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "pool does not exist", errorMessage([]byte(`{"message":"pool does not exist"}`)))
	assert.Equal(t, "plain text error", errorMessage([]byte("plain text error\n")))
}
