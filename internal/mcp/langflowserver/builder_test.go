package langflowserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

func testCatalog() map[string]any {
	return map[string]any{
		"inputs": map[string]any{
			"ChatInput": map[string]any{
				"display_name": "Chat Input",
				"template": map[string]any{
					"input_value": map[string]any{"type": "str", "value": ""},
				},
				"outputs": []any{
					map[string]any{"name": "message", "types": []any{"Message"}, "selected": "Message"},
				},
			},
		},
		"outputs": map[string]any{
			"ChatOutput": map[string]any{
				"display_name": "Chat Output",
				"template": map[string]any{
					"input_value": map[string]any{"type": "str", "input_types": []any{"Message"}},
				},
				"outputs": []any{},
			},
		},
	}
}

// flowStore serves one flow whose graph is replaced by PATCH requests.
type flowStore struct {
	mu   sync.Mutex
	data json.RawMessage
}

func (s *flowStore) install(fake *fakeLangflow) {
	fake.handle("GET /api/v1/all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, testCatalog())
	})
	fake.handle("GET /api/v1/flows/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "f1" {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Flow not found"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "f1", "name": "Builder", "data": s.data})
	})
	fake.handle("PATCH /api/v1/flows/{id}", func(w http.ResponseWriter, r *http.Request) {
		var update models.FlowUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": err.Error()})
			return
		}
		s.mu.Lock()
		s.data = update.Data
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "f1", "name": "Builder", "data": update.Data})
	})
}

func (s *flowStore) graph(t *testing.T) *models.Graph {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := models.ParseGraph(s.data)
	require.NoError(t, err)
	return g
}

func TestBuilderRequiresActiveFlow(t *testing.T) {
	fake := newFakeLangflow(t)
	cs := connect(t, fake.srv.URL, connectOptions{})

	detail := errorOf(t, callTool(t, cs, "add_node", map[string]any{"component_name": "ChatInput"}))
	assert.Equal(t, apierror.KindValidation, detail.Kind)
	assert.Contains(t, detail.Message, "set_active_flow")
	assert.Empty(t, fake.requestLog())
}

func TestBuilderAddsNodesAndEdges(t *testing.T) {
	fake := newFakeLangflow(t)
	store := &flowStore{}
	store.install(fake)
	cs := connect(t, fake.srv.URL, connectOptions{})

	active := decode[activeFlowResponse](t, callTool(t, cs, "set_active_flow", map[string]any{"flow_id": "f1"}))
	assert.Equal(t, activeFlowResponse{FlowID: "f1", Name: "Builder"}, active)

	in := decode[addNodeResponse](t, callTool(t, cs, "add_node", map[string]any{
		"component_name":  "ChatInput",
		"template_values": map[string]any{"input_value": "hello"},
		"position":        map[string]any{"x": 100, "y": 50},
	}))
	assert.Equal(t, "added", in.Status)
	assert.True(t, strings.HasPrefix(in.NodeID, "ChatInput-"))
	assert.Len(t, in.NodeID, len("ChatInput-")+5)

	out := decode[addNodeResponse](t, callTool(t, cs, "add_node", map[string]any{"component_name": "ChatOutput"}))

	graph := store.graph(t)
	require.Len(t, graph.Nodes, 2)
	node, ok := graph.Node(in.NodeID)
	require.True(t, ok)
	assert.Equal(t, "genericNode", node["type"])
	assert.Equal(t, map[string]any{"x": 100.0, "y": 50.0}, node["position"])
	data := node["data"].(map[string]any)
	assert.Equal(t, "ChatInput", data["type"])
	template := data["node"].(map[string]any)["template"].(map[string]any)
	assert.Equal(t, "hello", template["input_value"].(map[string]any)["value"])

	edge := decode[addEdgeResponse](t, callTool(t, cs, "add_edge", map[string]any{
		"source_node_id": in.NodeID,
		"source_output":  "message",
		"target_node_id": out.NodeID,
		"target_input":   "input_value",
	}))
	assert.Equal(t, "added", edge.Status)
	assert.True(t, strings.HasPrefix(edge.EdgeID, "reactflow__edge-"+in.NodeID+"{œ"))

	graph = store.graph(t)
	require.Len(t, graph.Edges, 1)
	e := graph.Edges[0]
	assert.Equal(t, in.NodeID, e["source"])
	assert.Equal(t, out.NodeID, e["target"])
	sourceHandle := e["sourceHandle"].(string)
	assert.NotContains(t, sourceHandle, `"`)
	assert.Contains(t, sourceHandle, "œdataTypeœ:œChatInputœ")
	assert.Contains(t, sourceHandle, "œoutput_typesœ:[œMessageœ]")
	assert.Contains(t, e["targetHandle"].(string), "œinputTypesœ:[œMessageœ]")

	// the same connection twice is rejected
	dup := errorOf(t, callTool(t, cs, "add_edge", map[string]any{
		"source_node_id": in.NodeID,
		"source_output":  "message",
		"target_node_id": out.NodeID,
		"target_input":   "input_value",
	}))
	assert.Equal(t, apierror.KindValidation, dup.Kind)
}

func TestBuilderErrors(t *testing.T) {
	fake := newFakeLangflow(t)
	store := &flowStore{}
	store.install(fake)
	cs := connect(t, fake.srv.URL, connectOptions{})

	missingFlow := errorOf(t, callTool(t, cs, "set_active_flow", map[string]any{"flow_id": "nope"}))
	assert.Equal(t, apierror.KindNotFound, missingFlow.Kind)
	assert.Equal(t, "nope", missingFlow.ID)

	decode[activeFlowResponse](t, callTool(t, cs, "set_active_flow", map[string]any{"flow_id": "f1"}))

	unknownComponent := errorOf(t, callTool(t, cs, "add_node", map[string]any{"component_name": "Missing"}))
	assert.Equal(t, apierror.KindNotFound, unknownComponent.Kind)
	assert.Equal(t, "component", unknownComponent.Resource)

	badField := errorOf(t, callTool(t, cs, "add_node", map[string]any{
		"component_name":  "ChatInput",
		"template_values": map[string]any{"temperature": 0.2},
	}))
	assert.Equal(t, apierror.KindValidation, badField.Kind)
	assert.Contains(t, badField.Message, "temperature")

	missingNode := errorOf(t, callTool(t, cs, "add_edge", map[string]any{
		"source_node_id": "ghost-1",
		"source_output":  "message",
		"target_node_id": "ghost-2",
		"target_input":   "input_value",
	}))
	assert.Equal(t, apierror.KindNotFound, missingNode.Kind)
	assert.Equal(t, "node", missingNode.Resource)
	assert.Equal(t, "ghost-1", missingNode.ID)

	assert.Empty(t, store.graph(t).Nodes)
}

func TestEncodeHandle(t *testing.T) {
	got, err := encodeHandle(map[string]any{"id": "A-1", "name": "out", "types": []string{"Message"}})
	require.NoError(t, err)
	assert.Equal(t, "{œidœ:œA-1œ,œnameœ:œoutœ,œtypesœ:[œMessageœ]}", got)
}
