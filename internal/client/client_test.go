package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetries(2, time.Millisecond)}, opts...)
	c, err := NewClient(srv.URL, "test-key", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "key")
	assert.True(t, apierror.IsKind(err, apierror.KindConfiguration))

	_, err = NewClient("ftp://langflow", "key")
	assert.True(t, apierror.IsKind(err, apierror.KindConfiguration))

	_, err = NewClient("http://localhost:7860", " ")
	assert.True(t, apierror.IsKind(err, apierror.KindAuthentication))

	c, err := NewClient("http://localhost:7860/", "key")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7860", c.BaseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
}

func TestListFlows_SendsKeyAndPreservesOrder(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/api/v1/flows/", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("get_all"))
		assert.Equal(t, "true", r.URL.Query().Get("remove_example_flows"))
		assert.Equal(t, "p1", r.URL.Query().Get("folder_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"c"},{"id":"a"},{"id":"b"}]`))
	}))

	page, err := c.ListFlows(context.Background(), ListFlowsOptions{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "c", page.Items[0].ID)
	assert.Equal(t, "a", page.Items[1].ID)
	assert.Equal(t, "b", page.Items[2].ID)
	assert.Equal(t, 3, page.Total)
}

func TestListFlows_Paginated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("get_all"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(`{"items":[{"id":"x"}],"total":11,"page":2,"size":10,"pages":2}`))
	}))

	page, err := c.ListFlows(context.Background(), ListFlowsOptions{Page: 2, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, 2, page.Pages)
}

func TestGetFlow_NotFoundEchoesID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Flow not found"}`))
	}))

	_, err := c.GetFlow(context.Background(), "missing-id")
	require.Error(t, err)
	apiErr := apierror.As(err)
	assert.Equal(t, apierror.KindNotFound, apiErr.Kind)
	assert.Equal(t, "missing-id", apiErr.ID)
	assert.Equal(t, "flow", apiErr.Resource)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apierror.Kind
		msg    string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Invalid API key"}`, apierror.KindAuthentication, "Invalid API key"},
		{"forbidden", http.StatusForbidden, ``, apierror.KindAuthentication, "403 Forbidden"},
		{"unprocessable", http.StatusUnprocessableEntity,
			`{"detail":[{"loc":["body","name"],"msg":"field required"}]}`, apierror.KindValidation, "body.name: field required"},
		{"conflict", http.StatusConflict, `plain text`, apierror.KindValidation, "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.CreateFlow(context.Background(), &models.FlowCreate{Name: "x"})
			require.Error(t, err)
			apiErr := apierror.As(err)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.msg, apiErr.Message)
		})
	}
}

func TestDo_RetriesTransientGET(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"version":"1.4.2","main_version":"1.4","package":"Langflow"}`))
	}))

	v, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", v.Version)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.GetVersion(context.Background())
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindTransient))
	assert.True(t, apierror.As(err).Retryable())
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_DoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.RunFlow(context.Background(), "f1", &models.RunRequest{InputValue: "hi"})
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindTransient))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetProject(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_MalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": `))
	}))

	_, err := c.GetFlow(context.Background(), "f1")
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindUnexpectedResponse))
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(base, "k", WithRetries(0, time.Millisecond))
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, apierror.IsKind(err, apierror.KindTransient))
}

func TestRunFlow_RequestShape(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/run/flow-1", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("stream"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["input_value"])
		assert.Equal(t, "chat", body["input_type"])

		_, _ = w.Write([]byte(`{"session_id":"s-1","outputs":[{"inputs":{},"outputs":[{"results":{"message":{"text":"hello"}}}]}]}`))
	}))

	resp, err := c.RunFlow(context.Background(), "flow-1", &models.RunRequest{InputValue: "hello", InputType: "chat"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", resp.SessionID)
	outs := resp.ComponentOutputs()
	require.Len(t, outs, 1)
	assert.Equal(t, "hello", outs[0].Text)
}

func TestDeleteProject_NoContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/projects/p-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteProject(context.Background(), "p-1"))
}

func TestGetProject_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat", `{"id":"p1","name":"Starter","flows":[{"id":"f1"},{"id":"f2"}]}`},
		{"paginated", `{"folder":{"id":"p1","name":"Starter"},"flows":{"items":[{"id":"f1"},{"id":"f2"}],"total":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			p, err := c.GetProject(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, "Starter", p.Name)
			require.Len(t, p.Flows, 2)
			assert.Equal(t, "f2", p.Flows[1].ID)
		})
	}
}

func TestListMessages_Query(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/monitor/messages", r.URL.Path)
		assert.Equal(t, "f1", r.URL.Query().Get("flow_id"))
		assert.Equal(t, "timestamp", r.URL.Query().Get("order_by"))
		assert.Empty(t, r.URL.Query().Get("sender"))
		_, _ = w.Write([]byte(`[{"id":"m1","flow_id":"f1","text":"hi","sender":"User"}]`))
	}))

	msgs, err := c.ListMessages(context.Background(), MessageFilter{FlowID: "f1"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestHealth_UsesUnversionedPath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestObserverSeesRouteTemplate(t *testing.T) {
	var mu sync.Mutex
	var routes []string
	var statuses []int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}), WithObserver(func(_ context.Context, method, route string, status int, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		routes = append(routes, method+" "+route)
		statuses = append(statuses, status)
	}))

	_, err := c.GetFlow(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /api/v1/flows/{id}"}, routes)
	assert.Equal(t, []int{http.StatusOK}, statuses)
}
