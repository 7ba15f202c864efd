// Package session tracks per-MCP-session Langflow credentials and builder state.
// Nothing here caches Langflow data; the only state kept is the active flow id.
package session

import (
	"sync"

	"github.com/langflow-mcp/langflow-mcp/internal/client"
)

const (
	SourceEnvironment = "environment"
	SourceMeta        = "_meta.langflow_credentials"
)

// Credentials identify one Langflow instance and the key used against it.
type Credentials struct {
	BaseURL string
	APIKey  string
}

// Session is the process-local context of one MCP session.
type Session struct {
	ID      string
	Source  string
	BaseURL string
	Client  client.API

	mu           sync.Mutex
	activeFlowID string
}

// ActiveFlow returns the flow the builder tools edit.
func (s *Session) ActiveFlow() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFlowID, s.activeFlowID != ""
}

func (s *Session) SetActiveFlow(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeFlowID = id
}
