package models

// Project is a Langflow project (called a folder in older API versions).
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// ProjectDetail is a project together with the flows it contains.
type ProjectDetail struct {
	Project
	Flows []Flow `json:"flows"`
}

type ProjectCreate struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	ParentID       string   `json:"parent_id,omitempty"`
	ComponentsList []string `json:"components_list"`
	FlowsList      []string `json:"flows_list"`
}

// ProjectUpdate is the body of PATCH /api/v1/projects/{id}. Langflow treats the
// Components and Flows lists as the full membership of the project, so callers must
// send the current membership to avoid moving flows out.
type ProjectUpdate struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Components  []string `json:"components"`
	Flows       []string `json:"flows"`
}

// Membership splits the contained flows into component and flow id lists.
func (p *ProjectDetail) Membership() (components, flows []string) {
	components, flows = []string{}, []string{}
	for _, f := range p.Flows {
		if f.IsComponent {
			components = append(components, f.ID)
			continue
		}
		flows = append(flows, f.ID)
	}
	return components, flows
}

type ProjectListResponse struct {
	Projects []Project `json:"projects"`
	Count    int       `json:"count"`
}

type ProjectDetailResponse struct {
	Project
	FlowIDs []string      `json:"flow_ids"`
	Flows   []FlowSummary `json:"flows"`
}
