package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flow is a Langflow flow as returned by the flows API. The graph is kept as raw
// JSON so it round-trips without loss.
type Flow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	IsComponent  bool            `json:"is_component,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
	Webhook      bool            `json:"webhook,omitempty"`
	EndpointName string          `json:"endpoint_name,omitempty"`
	Locked       bool            `json:"locked,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	FolderID     string          `json:"folder_id,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
}

// HasGraph reports whether the flow carries a non-null graph definition.
func (f *Flow) HasGraph() bool {
	trimmed := bytes.TrimSpace(f.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// FlowCreate is the body of POST /api/v1/flows/.
type FlowCreate struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	FolderID     string          `json:"folder_id,omitempty"`
	EndpointName string          `json:"endpoint_name,omitempty"`
}

// FlowUpdate is the body of PATCH /api/v1/flows/{id}. Empty fields are left unchanged.
type FlowUpdate struct {
	Name         string          `json:"name,omitempty"`
	Description  string          `json:"description,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	FolderID     string          `json:"folder_id,omitempty"`
	EndpointName string          `json:"endpoint_name,omitempty"`
}

// FlowPage is the paginated shape of GET /api/v1/flows/ when get_all is false.
// The client also folds the plain list shape into it.
type FlowPage struct {
	Items []Flow `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Pages int    `json:"pages"`
}

// Graph is the decoded form of Flow.Data used by the builder tools. Nodes and
// edges stay generic maps so unknown keys are preserved on write-back.
type Graph struct {
	Nodes    []map[string]any `json:"nodes"`
	Edges    []map[string]any `json:"edges"`
	Viewport map[string]any   `json:"viewport"`
}

// ParseGraph decodes a flow's graph. A missing graph yields an empty one.
func ParseGraph(raw json.RawMessage) (*Graph, error) {
	g := &Graph{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, g); err != nil {
			return nil, fmt.Errorf("decode flow graph: %w", err)
		}
	}
	if g.Nodes == nil {
		g.Nodes = []map[string]any{}
	}
	if g.Edges == nil {
		g.Edges = []map[string]any{}
	}
	if g.Viewport == nil {
		g.Viewport = map[string]any{"x": 0, "y": 0, "zoom": 1}
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (map[string]any, bool) {
	for _, n := range g.Nodes {
		if nid, _ := n["id"].(string); nid == id {
			return n, true
		}
	}
	return nil, false
}

// FlowSummary is the compact flow representation returned to MCP callers.
type FlowSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	EndpointName string `json:"endpoint_name,omitempty"`
	IsComponent  bool   `json:"is_component"`
	Locked       bool   `json:"locked"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// SummarizeFlow projects a Flow onto its summary.
func SummarizeFlow(f Flow) FlowSummary {
	return FlowSummary{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		ProjectID:    f.FolderID,
		EndpointName: f.EndpointName,
		IsComponent:  f.IsComponent,
		Locked:       f.Locked,
		UpdatedAt:    f.UpdatedAt,
	}
}

type FlowListResponse struct {
	Flows []FlowSummary `json:"flows"`
	Count int           `json:"count"`
	Total int           `json:"total,omitempty"`
	Page  int           `json:"page,omitempty"`
	Pages int           `json:"pages,omitempty"`
}

type FlowDetail struct {
	FlowSummary
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type DeleteResponse struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}
