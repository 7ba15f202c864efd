package langflowserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

const (
	nodeIDSuffixLen = 5
	nodeType        = "genericNode"
)

type setActiveFlowArgs struct {
	FlowID string `json:"flow_id" jsonschema:"the flow to edit"`
}

type nodePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type addNodeArgs struct {
	ComponentName  string         `json:"component_name" jsonschema:"exact component name, e.g. OpenAIModel"`
	TemplateValues map[string]any `json:"template_values,omitempty" jsonschema:"template field values keyed by field name, e.g. model_name"`
	Position       *nodePosition  `json:"position,omitempty" jsonschema:"canvas position of the node"`
}

type addEdgeArgs struct {
	SourceNodeID string `json:"source_node_id" jsonschema:"id of the node producing the value"`
	SourceOutput string `json:"source_output" jsonschema:"name of the source node's output"`
	TargetNodeID string `json:"target_node_id" jsonschema:"id of the node consuming the value"`
	TargetInput  string `json:"target_input" jsonschema:"name of the target node's template field"`
}

type activeFlowResponse struct {
	FlowID string `json:"flow_id"`
	Name   string `json:"name"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

type addNodeResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
	FlowID string `json:"flow_id"`
}

type addEdgeResponse struct {
	Status string `json:"status"`
	EdgeID string `json:"edge_id"`
	FlowID string `json:"flow_id"`
}

func builderTools() []Handler {
	return []Handler{
		newTool(toolSpec[setActiveFlowArgs]{
			name:        "set_active_flow",
			description: "Select the flow that add_node and add_edge edit in this session.",
			readOnly:    true,
			check:       func(in *setActiveFlowArgs) error { return requireArg("flow_id", in.FlowID) },
			run:         setActiveFlow,
		}),
		newTool(toolSpec[addNodeArgs]{
			name:        "add_node",
			description: "Add a component node to the active flow and save the flow. Returns the new node id.",
			check:       func(in *addNodeArgs) error { return requireArg("component_name", in.ComponentName) },
			run:         addNode,
		}),
		newTool(toolSpec[addEdgeArgs]{
			name:        "add_edge",
			description: "Connect a node output to another node's input in the active flow and save the flow.",
			check: func(in *addEdgeArgs) error {
				for _, f := range []struct{ name, value string }{
					{"source_node_id", in.SourceNodeID},
					{"source_output", in.SourceOutput},
					{"target_node_id", in.TargetNodeID},
					{"target_input", in.TargetInput},
				} {
					if err := requireArg(f.name, f.value); err != nil {
						return err
					}
				}
				if in.SourceNodeID == in.TargetNodeID {
					return apierror.New(apierror.KindValidation, "a node cannot be connected to itself")
				}
				return nil
			},
			run: addEdge,
		}),
	}
}

func setActiveFlow(ctx context.Context, s *session.Session, in *setActiveFlowArgs) (any, error) {
	flow, graph, err := loadGraph(ctx, s, in.FlowID)
	if err != nil {
		return nil, err
	}
	s.SetActiveFlow(flow.ID)
	return activeFlowResponse{FlowID: flow.ID, Name: flow.Name, Nodes: len(graph.Nodes), Edges: len(graph.Edges)}, nil
}

func addNode(ctx context.Context, s *session.Session, in *addNodeArgs) (any, error) {
	flowID, err := activeFlow(s)
	if err != nil {
		return nil, err
	}

	catalog, err := s.Client.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	component, ok := catalog.Find(in.ComponentName, "")
	if !ok {
		return nil, componentNotFound(in.ComponentName)
	}
	var definition map[string]any
	if err := json.Unmarshal(component.Definition, &definition); err != nil {
		return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "component %q definition", in.ComponentName)
	}
	if err := applyTemplateValues(definition, in.TemplateValues); err != nil {
		return nil, err
	}

	flow, graph, err := loadGraph(ctx, s, flowID)
	if err != nil {
		return nil, err
	}

	nodeID := newNodeID(in.ComponentName, graph)
	position := map[string]any{"x": 0.0, "y": 0.0}
	if in.Position != nil {
		position = map[string]any{"x": in.Position.X, "y": in.Position.Y}
	}
	graph.Nodes = append(graph.Nodes, map[string]any{
		"id":       nodeID,
		"type":     nodeType,
		"position": position,
		"data": map[string]any{
			"id":       nodeID,
			"type":     in.ComponentName,
			"showNode": true,
			"node":     definition,
		},
	})

	if err := saveGraph(ctx, s, flow.ID, graph); err != nil {
		return nil, err
	}
	return addNodeResponse{Status: "added", NodeID: nodeID, FlowID: flow.ID}, nil
}

// newNodeID returns an id of the form Component-xxxxx not yet used in graph.
func newNodeID(component string, graph *models.Graph) string {
	for {
		id := fmt.Sprintf("%s-%s", component, uuid.NewString()[:nodeIDSuffixLen])
		if _, taken := graph.Node(id); !taken {
			return id
		}
	}
}

func addEdge(ctx context.Context, s *session.Session, in *addEdgeArgs) (any, error) {
	flowID, err := activeFlow(s)
	if err != nil {
		return nil, err
	}
	flow, graph, err := loadGraph(ctx, s, flowID)
	if err != nil {
		return nil, err
	}

	source, ok := graph.Node(in.SourceNodeID)
	if !ok {
		return nil, nodeNotFound(in.SourceNodeID)
	}
	target, ok := graph.Node(in.TargetNodeID)
	if !ok {
		return nil, nodeNotFound(in.TargetNodeID)
	}

	sourceHandle, err := outputHandle(source, in.SourceNodeID, in.SourceOutput)
	if err != nil {
		return nil, err
	}
	targetHandle, err := inputHandle(target, in.TargetNodeID, in.TargetInput)
	if err != nil {
		return nil, err
	}

	encodedSource, err := encodeHandle(sourceHandle)
	if err != nil {
		return nil, err
	}
	encodedTarget, err := encodeHandle(targetHandle)
	if err != nil {
		return nil, err
	}
	edgeID := "reactflow__edge-" + in.SourceNodeID + encodedSource + "-" + in.TargetNodeID + encodedTarget
	for _, e := range graph.Edges {
		if id, _ := e["id"].(string); id == edgeID {
			return nil, apierror.New(apierror.KindValidation, "edge from %s.%s to %s.%s already exists",
				in.SourceNodeID, in.SourceOutput, in.TargetNodeID, in.TargetInput)
		}
	}

	graph.Edges = append(graph.Edges, map[string]any{
		"id":           edgeID,
		"source":       in.SourceNodeID,
		"target":       in.TargetNodeID,
		"sourceHandle": encodedSource,
		"targetHandle": encodedTarget,
		"data": map[string]any{
			"sourceHandle": sourceHandle,
			"targetHandle": targetHandle,
		},
		"className": "",
		"animated":  false,
	})

	if err := saveGraph(ctx, s, flow.ID, graph); err != nil {
		return nil, err
	}
	return addEdgeResponse{Status: "added", EdgeID: edgeID, FlowID: flow.ID}, nil
}

func activeFlow(s *session.Session) (string, error) {
	id, ok := s.ActiveFlow()
	if !ok {
		return "", apierror.New(apierror.KindValidation, "no active flow set; call set_active_flow first")
	}
	return id, nil
}

func loadGraph(ctx context.Context, s *session.Session, flowID string) (*models.Flow, *models.Graph, error) {
	flow, err := s.Client.GetFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := models.ParseGraph(flow.Data)
	if err != nil {
		return nil, nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "flow %q", flow.ID)
	}
	return flow, graph, nil
}

func saveGraph(ctx context.Context, s *session.Session, flowID string, graph *models.Graph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return apierror.Wrap(apierror.KindValidation, err, "encode flow graph")
	}
	_, err = s.Client.UpdateFlow(ctx, flowID, &models.FlowUpdate{Data: data})
	return err
}

// applyTemplateValues sets template[key].value for every given key. Unknown
// keys are rejected so a typo never silently drops a setting.
func applyTemplateValues(definition map[string]any, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	template, _ := definition["template"].(map[string]any)
	var unknown []string
	for key, value := range values {
		f, ok := template[key].(map[string]any)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		f["value"] = value
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apierror.New(apierror.KindValidation, "unknown template fields: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func nodeDefinition(node map[string]any) (string, map[string]any) {
	data, _ := node["data"].(map[string]any)
	componentType, _ := data["type"].(string)
	definition, _ := data["node"].(map[string]any)
	return componentType, definition
}

func outputHandle(node map[string]any, nodeID, output string) (map[string]any, error) {
	componentType, definition := nodeDefinition(node)
	outputs, _ := definition["outputs"].([]any)
	for _, o := range outputs {
		om, _ := o.(map[string]any)
		if name, _ := om["name"].(string); name != output {
			continue
		}
		types := stringList(om["types"])
		if selected, ok := om["selected"].(string); ok && selected != "" {
			types = []string{selected}
		}
		return map[string]any{
			"dataType":     componentType,
			"id":           nodeID,
			"name":         output,
			"output_types": types,
		}, nil
	}
	return nil, apierror.New(apierror.KindValidation, "node %s has no output %q", nodeID, output)
}

func inputHandle(node map[string]any, nodeID, input string) (map[string]any, error) {
	_, definition := nodeDefinition(node)
	template, _ := definition["template"].(map[string]any)
	f, ok := template[input].(map[string]any)
	if !ok {
		return nil, apierror.New(apierror.KindValidation, "node %s has no input %q", nodeID, input)
	}
	fieldType, _ := f["type"].(string)
	return map[string]any{
		"fieldName":  input,
		"id":         nodeID,
		"inputTypes": stringList(f["input_types"]),
		"type":       fieldType,
	}, nil
}

// encodeHandle renders a handle the way the Langflow canvas stores it: compact
// JSON with sorted keys and double quotes replaced by œ.
func encodeHandle(handle map[string]any) (string, error) {
	raw, err := json.Marshal(handle)
	if err != nil {
		return "", apierror.Wrap(apierror.KindValidation, err, "encode edge handle")
	}
	return strings.ReplaceAll(string(raw), `"`, "œ"), nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nodeNotFound(id string) error {
	return apierror.New(apierror.KindNotFound, "").WithResource("node", id)
}
