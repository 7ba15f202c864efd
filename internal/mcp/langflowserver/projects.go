package langflowserver

import (
	"context"
	"strings"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

type projectIDArgs struct {
	ProjectID string `json:"project_id" jsonschema:"the project id"`
}

type createProjectArgs struct {
	Name        string `json:"name" jsonschema:"project name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty" jsonschema:"parent project id"`
}

type updateProjectArgs struct {
	ProjectID   string `json:"project_id" jsonschema:"the project id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

func projectTools() []Handler {
	return []Handler{
		newTool(toolSpec[struct{}]{
			name:        "list_projects",
			description: "List all projects.",
			readOnly:    true,
			run:         listProjects,
		}),
		newTool(toolSpec[projectIDArgs]{
			name:        "get_project",
			description: "Fetch a project and summaries of the flows it contains.",
			readOnly:    true,
			check:       func(in *projectIDArgs) error { return requireArg("project_id", in.ProjectID) },
			run:         getProject,
		}),
		newTool(toolSpec[createProjectArgs]{
			name:        "create_project",
			description: "Create an empty project.",
			check:       func(in *createProjectArgs) error { return requireArg("name", in.Name) },
			run:         createProject,
		}),
		newTool(toolSpec[updateProjectArgs]{
			name:        "update_project",
			description: "Rename, describe or re-parent a project. Its flows stay in place.",
			check: func(in *updateProjectArgs) error {
				if err := requireArg("project_id", in.ProjectID); err != nil {
					return err
				}
				if in.Name == "" && in.Description == "" && in.ParentID == "" {
					return apierror.New(apierror.KindValidation, "nothing to update")
				}
				return nil
			},
			run: updateProject,
		}),
		newTool(toolSpec[projectIDArgs]{
			name:        "delete_project",
			description: "Delete a project together with the flows inside it.",
			destructive: true,
			check:       func(in *projectIDArgs) error { return requireArg("project_id", in.ProjectID) },
			run:         deleteProject,
		}),
	}
}

func listProjects(ctx context.Context, s *session.Session, _ *struct{}) (any, error) {
	projects, err := s.Client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return models.ProjectListResponse{Projects: projects, Count: len(projects)}, nil
}

func getProject(ctx context.Context, s *session.Session, in *projectIDArgs) (any, error) {
	p, err := s.Client.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	out := models.ProjectDetailResponse{
		Project: p.Project,
		FlowIDs: make([]string, 0, len(p.Flows)),
		Flows:   make([]models.FlowSummary, 0, len(p.Flows)),
	}
	for _, f := range p.Flows {
		out.FlowIDs = append(out.FlowIDs, f.ID)
		out.Flows = append(out.Flows, models.SummarizeFlow(f))
	}
	return out, nil
}

func createProject(ctx context.Context, s *session.Session, in *createProjectArgs) (any, error) {
	p, err := s.Client.CreateProject(ctx, &models.ProjectCreate{
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		ParentID:       in.ParentID,
		ComponentsList: []string{},
		FlowsList:      []string{},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// updateProject re-reads the membership first: Langflow treats the PATCH lists
// as the full set of contained flows.
func updateProject(ctx context.Context, s *session.Session, in *updateProjectArgs) (any, error) {
	current, err := s.Client.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	components, flows := current.Membership()
	p, err := s.Client.UpdateProject(ctx, in.ProjectID, &models.ProjectUpdate{
		Name:        in.Name,
		Description: in.Description,
		ParentID:    in.ParentID,
		Components:  components,
		Flows:       flows,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func deleteProject(ctx context.Context, s *session.Session, in *projectIDArgs) (any, error) {
	if err := s.Client.DeleteProject(ctx, in.ProjectID); err != nil {
		return nil, err
	}
	return models.DeleteResponse{Status: "deleted", ID: in.ProjectID}, nil
}
