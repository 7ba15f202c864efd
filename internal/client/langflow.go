package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

// API is the subset of the Langflow REST API exposed as MCP tools.
type API interface {
	ListFlows(ctx context.Context, opts ListFlowsOptions) (*models.FlowPage, error)
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	CreateFlow(ctx context.Context, in *models.FlowCreate) (*models.Flow, error)
	UpdateFlow(ctx context.Context, id string, in *models.FlowUpdate) (*models.Flow, error)
	DeleteFlow(ctx context.Context, id string) (*models.SuccessMessage, error)

	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (*models.ProjectDetail, error)
	CreateProject(ctx context.Context, in *models.ProjectCreate) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, in *models.ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	RunFlow(ctx context.Context, id string, in *models.RunRequest) (*models.RunResponse, error)
	ListComponents(ctx context.Context) (models.ComponentCatalog, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error)

	GetVersion(ctx context.Context) (*models.Version, error)
	GetConfig(ctx context.Context) (models.ServerConfig, error)
	Health(ctx context.Context) (*models.Health, error)

	Close() error
}

var _ API = (*Client)(nil)

// ListFlowsOptions mirrors the query parameters of GET /api/v1/flows/.
// A zero Page requests the full list (get_all=true).
type ListFlowsOptions struct {
	ProjectID       string
	ComponentsOnly  bool
	IncludeExamples bool
	HeaderOnly      bool
	Page            int
	Size            int
}

func (o ListFlowsOptions) query() url.Values {
	q := url.Values{}
	q.Set("remove_example_flows", strconv.FormatBool(!o.IncludeExamples))
	q.Set("components_only", strconv.FormatBool(o.ComponentsOnly))
	q.Set("header_flows", strconv.FormatBool(o.HeaderOnly))
	if o.ProjectID != "" {
		q.Set("folder_id", o.ProjectID)
	}
	if o.Page > 0 {
		size := o.Size
		if size <= 0 {
			size = 50
		}
		q.Set("get_all", "false")
		q.Set("page", strconv.Itoa(o.Page))
		q.Set("size", strconv.Itoa(size))
	} else {
		q.Set("get_all", "true")
	}
	return q
}

// MessageFilter narrows GET /api/v1/monitor/messages.
type MessageFilter struct {
	FlowID    string
	SessionID string
	Sender    string
}

// ListFlows returns flows in the order Langflow reports them. Both the list
// response (get_all) and the paginated response are accepted.
func (c *Client) ListFlows(ctx context.Context, opts ListFlowsOptions) (*models.FlowPage, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/flows/",
		path:   apiPrefix + "/flows/",
		query:  opts.query(),
	}, &raw)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var flows []models.Flow
		if err := json.Unmarshal(trimmed, &flows); err != nil {
			return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to parse flow list")
		}
		return &models.FlowPage{Items: flows, Total: len(flows)}, nil
	}
	var page models.FlowPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to parse flow page")
	}
	if page.Items == nil {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "flow list response has neither a list nor items")
	}
	return &page, nil
}

func (c *Client) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	var flow models.Flow
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/flows/{id}",
		path:   apiPrefix + "/flows/" + url.PathEscape(id),
	}, &flow)
	if err != nil {
		return nil, annotate(err, "flow", id)
	}
	if flow.ID == "" {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "flow response for %q has no id", id)
	}
	return &flow, nil
}

func (c *Client) CreateFlow(ctx context.Context, in *models.FlowCreate) (*models.Flow, error) {
	var flow models.Flow
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  apiPrefix + "/flows/",
		path:   apiPrefix + "/flows/",
		body:   in,
	}, &flow)
	if err != nil {
		return nil, annotate(err, "flow", "")
	}
	return &flow, nil
}

func (c *Client) UpdateFlow(ctx context.Context, id string, in *models.FlowUpdate) (*models.Flow, error) {
	var flow models.Flow
	err := c.do(ctx, request{
		method: http.MethodPatch,
		route:  apiPrefix + "/flows/{id}",
		path:   apiPrefix + "/flows/" + url.PathEscape(id),
		body:   in,
	}, &flow)
	if err != nil {
		return nil, annotate(err, "flow", id)
	}
	return &flow, nil
}

func (c *Client) DeleteFlow(ctx context.Context, id string) (*models.SuccessMessage, error) {
	var msg models.SuccessMessage
	err := c.do(ctx, request{
		method: http.MethodDelete,
		route:  apiPrefix + "/flows/{id}",
		path:   apiPrefix + "/flows/" + url.PathEscape(id),
	}, &msg)
	if err != nil {
		return nil, annotate(err, "flow", id)
	}
	return &msg, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/projects/",
		path:   apiPrefix + "/projects/",
	}, &projects)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// GetProject accepts both the flat response ({..., "flows": [...]}) and the
// paginated one ({"folder": {...}, "flows": {"items": [...]}}).
func (c *Client) GetProject(ctx context.Context, id string) (*models.ProjectDetail, error) {
	var raw struct {
		models.Project
		Folder *models.Project  `json:"folder"`
		Flows  json.RawMessage `json:"flows"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/projects/{id}",
		path:   apiPrefix + "/projects/" + url.PathEscape(id),
	}, &raw)
	if err != nil {
		return nil, annotate(err, "project", id)
	}

	detail := &models.ProjectDetail{Project: raw.Project, Flows: []models.Flow{}}
	if raw.Folder != nil {
		detail.Project = *raw.Folder
	}
	if detail.ID == "" {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "project response for %q has no id", id)
	}

	flows := bytes.TrimSpace(raw.Flows)
	switch {
	case len(flows) == 0 || bytes.Equal(flows, []byte("null")):
	case flows[0] == '[':
		if err := json.Unmarshal(flows, &detail.Flows); err != nil {
			return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to parse project flows")
		}
	default:
		var page models.FlowPage
		if err := json.Unmarshal(flows, &page); err != nil {
			return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to parse project flow page")
		}
		if page.Items != nil {
			detail.Flows = page.Items
		}
	}
	return detail, nil
}

func (c *Client) CreateProject(ctx context.Context, in *models.ProjectCreate) (*models.Project, error) {
	var project models.Project
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  apiPrefix + "/projects/",
		path:   apiPrefix + "/projects/",
		body:   in,
	}, &project)
	if err != nil {
		return nil, annotate(err, "project", "")
	}
	return &project, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, in *models.ProjectUpdate) (*models.Project, error) {
	var project models.Project
	err := c.do(ctx, request{
		method: http.MethodPatch,
		route:  apiPrefix + "/projects/{id}",
		path:   apiPrefix + "/projects/" + url.PathEscape(id),
		body:   in,
	}, &project)
	if err != nil {
		return nil, annotate(err, "project", id)
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		route:  apiPrefix + "/projects/{id}",
		path:   apiPrefix + "/projects/" + url.PathEscape(id),
	}, nil)
	if err != nil {
		return annotate(err, "project", id)
	}
	return nil
}

// RunFlow executes a flow synchronously (stream=false).
func (c *Client) RunFlow(ctx context.Context, id string, in *models.RunRequest) (*models.RunResponse, error) {
	var resp models.RunResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  apiPrefix + "/run/{id}",
		path:   apiPrefix + "/run/" + url.PathEscape(id),
		query:  url.Values{"stream": []string{"false"}},
		body:   in,
	}, &resp)
	if err != nil {
		return nil, annotate(err, "flow", id)
	}
	if resp.Outputs == nil {
		resp.Outputs = []models.RunOutputs{}
	}
	return &resp, nil
}

func (c *Client) ListComponents(ctx context.Context) (models.ComponentCatalog, error) {
	var catalog models.ComponentCatalog
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/all",
		path:   apiPrefix + "/all",
	}, &catalog)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = models.ComponentCatalog{}
	}
	return catalog, nil
}

func (c *Client) ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error) {
	q := url.Values{}
	if filter.FlowID != "" {
		q.Set("flow_id", filter.FlowID)
	}
	if filter.SessionID != "" {
		q.Set("session_id", filter.SessionID)
	}
	if filter.Sender != "" {
		q.Set("sender", filter.Sender)
	}
	q.Set("order_by", "timestamp")

	var messages []models.Message
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/monitor/messages",
		path:   apiPrefix + "/monitor/messages",
		query:  q,
	}, &messages)
	if err != nil {
		return nil, annotate(err, "flow", filter.FlowID)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (c *Client) GetVersion(ctx context.Context) (*models.Version, error) {
	var v models.Version
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/version",
		path:   apiPrefix + "/version",
	}, &v)
	if err != nil {
		return nil, err
	}
	if v.Version == "" {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "version response has no version")
	}
	return &v, nil
}

func (c *Client) GetConfig(ctx context.Context) (models.ServerConfig, error) {
	var cfg models.ServerConfig
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  apiPrefix + "/config",
		path:   apiPrefix + "/config",
	}, &cfg)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "config response is empty")
	}
	return cfg, nil
}

// Health calls the unversioned /health endpoint.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var h models.Health
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/health",
		path:   "/health",
	}, &h)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func annotate(err error, resource, id string) error {
	apiErr := apierror.As(err)
	return apiErr.WithResource(resource, id)
}
