package models

type Version struct {
	Version     string `json:"version"`
	MainVersion string `json:"main_version,omitempty"`
	Package     string `json:"package,omitempty"`
}

// ServerConfig is Langflow's /config payload. Its keys change between releases so
// it is passed through as-is.
type ServerConfig map[string]any

type Health struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	LangflowURL string `json:"langflow_url"`
}

// SuccessMessage is Langflow's generic {"message": ...} acknowledgement.
type SuccessMessage struct {
	Message string `json:"message"`
}
