package langflowserver

import (
	"context"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

type listComponentsArgs struct {
	Category string `json:"category,omitempty" jsonschema:"only list this category, e.g. inputs or models"`
	Search   string `json:"search,omitempty" jsonschema:"case-insensitive match on name or display name"`
}

type getComponentArgs struct {
	Name     string `json:"name" jsonschema:"component name, e.g. OpenAIModel"`
	Category string `json:"category,omitempty" jsonschema:"disambiguate when the name exists in several categories"`
}

func componentTools() []Handler {
	return []Handler{
		newTool(toolSpec[listComponentsArgs]{
			name:        "list_components",
			description: "List the components available to flows, sorted by category and name.",
			readOnly:    true,
			run:         listComponents,
		}),
		newTool(toolSpec[getComponentArgs]{
			name:        "get_component",
			description: "Fetch one component's full definition, including its template fields and outputs.",
			readOnly:    true,
			check:       func(in *getComponentArgs) error { return requireArg("name", in.Name) },
			run:         getComponent,
		}),
	}
}

func listComponents(ctx context.Context, s *session.Session, in *listComponentsArgs) (any, error) {
	catalog, err := s.Client.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	summaries := catalog.Summaries(in.Category, in.Search)
	return models.ComponentListResponse{Components: summaries, Count: len(summaries)}, nil
}

func getComponent(ctx context.Context, s *session.Session, in *getComponentArgs) (any, error) {
	catalog, err := s.Client.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	detail, ok := catalog.Find(in.Name, in.Category)
	if !ok {
		return nil, componentNotFound(in.Name)
	}
	return detail, nil
}

func componentNotFound(name string) error {
	return apierror.New(apierror.KindNotFound, "").WithResource("component", name)
}
