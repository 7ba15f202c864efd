package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/client"
)

// MetaKey is the initialize _meta entry carrying per-session credentials:
//
//	{"langflow_credentials": {"api_key": "...", "url": "https://..."}}
const MetaKey = "langflow_credentials"

// Factory builds an API client for one set of credentials.
type Factory func(baseURL, apiKey string) (client.API, error)

// Manager maps live MCP sessions to their Session. Sessions are created on
// first use and dropped when the MCP session closes.
type Manager struct {
	defaults Credentials
	factory  Factory
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[any]*Session
	closed   bool
}

func NewManager(defaults Credentials, factory Factory, logger zerolog.Logger) *Manager {
	return &Manager{
		defaults: defaults,
		factory:  factory,
		logger:   logger,
		sessions: make(map[any]*Session),
	}
}

// Resolve returns the Session bound to ss, creating it from the initialize
// _meta credentials or the environment defaults.
func (m *Manager) Resolve(ss *mcp.ServerSession) (*Session, error) {
	if ss == nil {
		return nil, apierror.New(apierror.KindUnexpectedResponse, "tool call has no MCP session")
	}
	var meta map[string]any
	if params := ss.InitializeParams(); params != nil {
		meta = params.GetMeta()
	}
	return m.resolve(ss, meta, ss.Wait)
}

func (m *Manager) resolve(key any, meta map[string]any, wait func() error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, apierror.New(apierror.KindTransient, "server is shutting down")
	}
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	creds, source, err := m.credentials(meta)
	if err != nil {
		return nil, err
	}
	api, err := m.factory(creds.BaseURL, creds.APIKey)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:      uuid.NewString(),
		Source:  source,
		BaseURL: strings.TrimRight(creds.BaseURL, "/"),
		Client:  api,
	}
	m.sessions[key] = s
	m.logger.Info().Str("session", s.ID).Str("credentials", source).Str("langflow_url", s.BaseURL).Msg("session created")

	if wait != nil {
		go func() {
			_ = wait()
			m.Drop(key)
		}()
	}
	return s, nil
}

func (m *Manager) credentials(meta map[string]any) (Credentials, string, error) {
	raw, ok := meta[MetaKey]
	if !ok {
		if m.defaults.APIKey == "" {
			return Credentials{}, "", apierror.New(apierror.KindAuthentication,
				"langflow API key not supplied via _meta.%s or LANGFLOW_API_KEY", MetaKey)
		}
		if m.defaults.BaseURL == "" {
			return Credentials{}, "", apierror.New(apierror.KindConfiguration, "LANGFLOW_BASE_URL is not configured")
		}
		return m.defaults, SourceEnvironment, nil
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return Credentials{}, "", apierror.New(apierror.KindAuthentication, "_meta.%s must be an object", MetaKey)
	}
	apiKey, _ := fields["api_key"].(string)
	if strings.TrimSpace(apiKey) == "" {
		return Credentials{}, "", apierror.New(apierror.KindAuthentication, "_meta.%s.api_key is required", MetaKey)
	}
	baseURL, _ := fields["url"].(string)
	if baseURL == "" {
		baseURL = m.defaults.BaseURL
	}
	if baseURL == "" {
		return Credentials{}, "", apierror.New(apierror.KindConfiguration,
			"LANGFLOW_BASE_URL is not configured and _meta.%s.url is empty", MetaKey)
	}
	return Credentials{BaseURL: baseURL, APIKey: apiKey}, SourceMeta, nil
}

// Drop forgets the session bound to key and releases its client.
func (m *Manager) Drop(key any) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if ok {
		_ = s.Client.Close()
		m.logger.Info().Str("session", s.ID).Msg("session closed")
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops every session and refuses new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[any]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Client.Close()
	}
}
