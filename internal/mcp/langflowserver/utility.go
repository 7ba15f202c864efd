package langflowserver

import (
	"context"

	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

func utilityTools() []Handler {
	return []Handler{
		newTool(toolSpec[struct{}]{
			name:        "get_version",
			description: "Report the Langflow server version.",
			readOnly:    true,
			run: func(ctx context.Context, s *session.Session, _ *struct{}) (any, error) {
				return s.Client.GetVersion(ctx)
			},
		}),
		newTool(toolSpec[struct{}]{
			name:        "get_config",
			description: "Report the Langflow server's public configuration.",
			readOnly:    true,
			run: func(ctx context.Context, s *session.Session, _ *struct{}) (any, error) {
				return s.Client.GetConfig(ctx)
			},
		}),
		newTool(toolSpec[struct{}]{
			name:        "health_check",
			description: "Check that the Langflow server is reachable and healthy.",
			readOnly:    true,
			run:         healthCheck,
		}),
	}
}

func healthCheck(ctx context.Context, s *session.Session, _ *struct{}) (any, error) {
	h, err := s.Client.Health(ctx)
	if err != nil {
		return nil, err
	}
	return models.HealthResponse{Status: h.Status, LangflowURL: s.BaseURL}, nil
}
