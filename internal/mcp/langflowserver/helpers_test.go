package langflowserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/langflow-mcp/langflow-mcp/internal/client"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
)

// fakeLangflow is an httptest Langflow that records every request it receives.
type fakeLangflow struct {
	mux *http.ServeMux
	srv *httptest.Server

	mu       sync.Mutex
	requests []string
}

func newFakeLangflow(t *testing.T) *fakeLangflow {
	t.Helper()
	f := &fakeLangflow{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLangflow) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeLangflow) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type connectOptions struct {
	gate     Gate
	registry *Registry
	meta     map[string]any
}

// connect wires an MCP client to a server whose sessions talk to baseURL.
func connect(t *testing.T, baseURL string, opts connectOptions) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	sessions := session.NewManager(
		session.Credentials{BaseURL: baseURL, APIKey: "test-key"},
		func(base, key string) (client.API, error) {
			return client.NewClient(base, key, client.WithRetries(0, time.Millisecond))
		},
		zerolog.Nop(),
	)
	t.Cleanup(sessions.Close)

	server, err := NewServer(Options{
		Sessions: sessions,
		Gate:     opts.gate,
		Logger:   zerolog.Nop(),
		Registry: opts.registry,
	})
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Wait() })

	c := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	if opts.meta != nil {
		c.AddSendingMiddleware(func(next mcp.MethodHandler) mcp.MethodHandler {
			return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
				if method == "initialize" {
					req.GetParams().SetMeta(opts.meta)
				}
				return next(ctx, method, req)
			}
		})
	}
	clientSession, err := c.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "tool errors must not surface as protocol errors")
	return res
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "unexpected error result: %s", resultText(res))
	var out T
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func errorOf(t *testing.T, res *mcp.CallToolResult) ErrorDetail {
	t.Helper()
	require.True(t, res.IsError, "expected an error result, got %s", resultText(res))
	var body ErrorBody
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Error
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
