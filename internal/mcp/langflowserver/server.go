package langflowserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/langflow-mcp/langflow-mcp/internal/telemetry"
	"github.com/langflow-mcp/langflow-mcp/internal/version"
)

const instructions = "Tools for the Langflow API: manage flows and projects, browse components, " +
	"run flows and inspect their messages. To edit a flow graph call set_active_flow first, " +
	"then add_node and add_edge."

// Options configures NewServer.
type Options struct {
	Sessions SessionResolver
	// Gate is optional; without one every call is admitted.
	Gate     Gate
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
	Registry *Registry
}

// NewServer constructs an MCP server exposing every registered Langflow tool.
func NewServer(opts Options) (*mcp.Server, error) {
	registry := opts.Registry
	if registry == nil {
		var err error
		if registry, err = DefaultRegistry(); err != nil {
			return nil, err
		}
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "langflow-mcp",
		Version: version.Version,
	}, &mcp.ServerOptions{
		Instructions: instructions,
		HasTools:     true,
	})

	d := &Dispatcher{
		Sessions: opts.Sessions,
		Gate:     opts.Gate,
		Metrics:  opts.Metrics,
		Logger:   opts.Logger,
	}
	for _, h := range registry.Handlers() {
		server.AddTool(h.Definition(), d.Handle(h))
	}
	return server, nil
}
