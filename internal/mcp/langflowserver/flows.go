package langflowserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stoewer/go-strcase"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/client"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

const maxPageSize = 500

type listFlowsArgs struct {
	ProjectID       string `json:"project_id,omitempty" jsonschema:"only return flows in this project"`
	ComponentsOnly  bool   `json:"components_only,omitempty" jsonschema:"only return flows saved as components"`
	IncludeExamples bool   `json:"include_examples,omitempty" jsonschema:"include Langflow's starter example flows"`
	Page            int    `json:"page,omitempty" jsonschema:"1-based page number; omit to list everything"`
	Size            int    `json:"size,omitempty" jsonschema:"page size, only with page (1-500, default 50)"`
}

type getFlowArgs struct {
	FlowID      string `json:"flow_id" jsonschema:"the flow id"`
	IncludeData bool   `json:"include_data,omitempty" jsonschema:"include the full graph definition"`
}

type createFlowArgs struct {
	Name         string         `json:"name" jsonschema:"display name of the flow"`
	Description  string         `json:"description,omitempty"`
	ProjectID    string         `json:"project_id,omitempty" jsonschema:"project to create the flow in"`
	EndpointName string         `json:"endpoint_name,omitempty" jsonschema:"custom endpoint name; normalised to lowercase letters, digits, - and _"`
	Data         map[string]any `json:"data,omitempty" jsonschema:"graph definition with nodes, edges and viewport"`
}

type updateFlowArgs struct {
	FlowID       string         `json:"flow_id" jsonschema:"the flow id"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	ProjectID    string         `json:"project_id,omitempty" jsonschema:"move the flow to this project"`
	EndpointName string         `json:"endpoint_name,omitempty"`
	Data         map[string]any `json:"data,omitempty" jsonschema:"replacement graph definition"`
}

type flowIDArgs struct {
	FlowID string `json:"flow_id" jsonschema:"the flow id"`
}

func flowTools() []Handler {
	return []Handler{
		newTool(toolSpec[listFlowsArgs]{
			name:        "list_flows",
			description: "List flows, optionally filtered by project. Returns summaries without graph data.",
			readOnly:    true,
			check: func(in *listFlowsArgs) error {
				if in.Page < 0 {
					return apierror.New(apierror.KindValidation, "page must not be negative")
				}
				if in.Size < 0 || in.Size > maxPageSize {
					return apierror.New(apierror.KindValidation, "size must be between 1 and %d", maxPageSize)
				}
				if in.Size > 0 && in.Page == 0 {
					return apierror.New(apierror.KindValidation, "size requires page")
				}
				return nil
			},
			run: listFlows,
		}),
		newTool(toolSpec[getFlowArgs]{
			name:        "get_flow",
			description: "Fetch one flow with node and edge counts, optionally including its graph.",
			readOnly:    true,
			check:       func(in *getFlowArgs) error { return requireArg("flow_id", in.FlowID) },
			run:         getFlow,
		}),
		newTool(toolSpec[createFlowArgs]{
			name:        "create_flow",
			description: "Create a flow. Without data the flow starts with an empty graph.",
			check: func(in *createFlowArgs) error {
				if err := requireArg("name", in.Name); err != nil {
					return err
				}
				if err := checkGraphData(in.Data); err != nil {
					return err
				}
				return checkEndpointName(in.EndpointName)
			},
			run: createFlow,
		}),
		newTool(toolSpec[updateFlowArgs]{
			name:        "update_flow",
			description: "Update a flow's name, description, project, endpoint name or graph. Omitted fields are unchanged.",
			check: func(in *updateFlowArgs) error {
				if err := requireArg("flow_id", in.FlowID); err != nil {
					return err
				}
				if in.Name == "" && in.Description == "" && in.ProjectID == "" && in.EndpointName == "" && in.Data == nil {
					return apierror.New(apierror.KindValidation, "nothing to update")
				}
				if err := checkGraphData(in.Data); err != nil {
					return err
				}
				return checkEndpointName(in.EndpointName)
			},
			run: updateFlow,
		}),
		newTool(toolSpec[flowIDArgs]{
			name:        "delete_flow",
			description: "Delete a flow permanently.",
			destructive: true,
			check:       func(in *flowIDArgs) error { return requireArg("flow_id", in.FlowID) },
			run:         deleteFlow,
		}),
	}
}

func listFlows(ctx context.Context, s *session.Session, in *listFlowsArgs) (any, error) {
	page, err := s.Client.ListFlows(ctx, client.ListFlowsOptions{
		ProjectID:       in.ProjectID,
		ComponentsOnly:  in.ComponentsOnly,
		IncludeExamples: in.IncludeExamples,
		HeaderOnly:      true,
		Page:            in.Page,
		Size:            in.Size,
	})
	if err != nil {
		return nil, err
	}

	out := models.FlowListResponse{Flows: make([]models.FlowSummary, 0, len(page.Items))}
	for _, f := range page.Items {
		out.Flows = append(out.Flows, models.SummarizeFlow(f))
	}
	out.Count = len(out.Flows)
	if in.Page > 0 {
		out.Total, out.Page, out.Pages = page.Total, page.Page, page.Pages
	}
	return out, nil
}

func getFlow(ctx context.Context, s *session.Session, in *getFlowArgs) (any, error) {
	flow, err := s.Client.GetFlow(ctx, in.FlowID)
	if err != nil {
		return nil, err
	}
	graph, err := models.ParseGraph(flow.Data)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "flow %q", flow.ID)
	}
	out := models.FlowDetail{
		FlowSummary: models.SummarizeFlow(*flow),
		NodeCount:   len(graph.Nodes),
		EdgeCount:   len(graph.Edges),
	}
	if in.IncludeData && flow.HasGraph() {
		out.Data = flow.Data
	}
	return out, nil
}

func createFlow(ctx context.Context, s *session.Session, in *createFlowArgs) (any, error) {
	data, err := graphData(in.Data)
	if err != nil {
		return nil, err
	}
	if data == nil {
		empty, _ := models.ParseGraph(nil)
		if data, err = json.Marshal(empty); err != nil {
			return nil, apierror.Wrap(apierror.KindValidation, err, "encode empty graph")
		}
	}
	flow, err := s.Client.CreateFlow(ctx, &models.FlowCreate{
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Data:         data,
		FolderID:     in.ProjectID,
		EndpointName: normalizeEndpointName(in.EndpointName),
	})
	if err != nil {
		return nil, err
	}
	return models.SummarizeFlow(*flow), nil
}

func updateFlow(ctx context.Context, s *session.Session, in *updateFlowArgs) (any, error) {
	data, err := graphData(in.Data)
	if err != nil {
		return nil, err
	}
	flow, err := s.Client.UpdateFlow(ctx, in.FlowID, &models.FlowUpdate{
		Name:         in.Name,
		Description:  in.Description,
		Data:         data,
		FolderID:     in.ProjectID,
		EndpointName: normalizeEndpointName(in.EndpointName),
	})
	if err != nil {
		return nil, err
	}
	return models.SummarizeFlow(*flow), nil
}

func deleteFlow(ctx context.Context, s *session.Session, in *flowIDArgs) (any, error) {
	msg, err := s.Client.DeleteFlow(ctx, in.FlowID)
	if err != nil {
		return nil, err
	}
	return models.DeleteResponse{Status: "deleted", ID: in.FlowID, Message: msg.Message}, nil
}

// checkGraphData rejects graphs without both node and edge lists. data replaces
// the stored graph wholesale, so a partial object would wipe the flow.
func checkGraphData(data map[string]any) error {
	if data == nil {
		return nil
	}
	for _, key := range []string{"nodes", "edges"} {
		v, ok := data[key]
		if !ok {
			return apierror.New(apierror.KindValidation, "data.%s is required", key)
		}
		if _, isList := v.([]any); !isList {
			return apierror.New(apierror.KindValidation, "data.%s must be a list", key)
		}
	}
	return nil
}

func graphData(data map[string]any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindValidation, err, "encode data")
	}
	return raw, nil
}

// normalizeEndpointName maps a free-form name onto Langflow's endpoint charset.
func normalizeEndpointName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	kebab := strcase.KebabCase(name)
	var b strings.Builder
	for _, r := range kebab {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func checkEndpointName(name string) error {
	if strings.TrimSpace(name) != "" && normalizeEndpointName(name) == "" {
		return apierror.New(apierror.KindValidation, "endpoint_name %q has no usable characters", name)
	}
	return nil
}
