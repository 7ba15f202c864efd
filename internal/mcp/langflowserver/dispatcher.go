package langflowserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/internal/telemetry"
)

// Gate admits tool calls while the server is ready and tracks the ones in flight.
type Gate interface {
	Enter() bool
	Exit()
}

// SessionResolver maps an MCP session onto its Langflow session.
type SessionResolver interface {
	Resolve(ss *mcp.ServerSession) (*session.Session, error)
}

// Dispatcher wraps Handlers as MCP tool handlers. Failures of any kind become
// error results, never protocol errors.
type Dispatcher struct {
	Sessions SessionResolver
	Gate     Gate
	Metrics  *telemetry.Metrics
	Logger   zerolog.Logger
}

// ErrorBody is the structured content of an error result.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind      apierror.Kind `json:"kind"`
	Message   string        `json:"message"`
	Status    int           `json:"status,omitempty"`
	Resource  string        `json:"resource,omitempty"`
	ID        string        `json:"id,omitempty"`
	Retryable bool          `json:"retryable"`
}

// Handle returns the MCP handler for h.
func (d *Dispatcher) Handle(h Handler) mcp.ToolHandler {
	name := h.Definition().Name
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		var raw json.RawMessage
		var ss *mcp.ServerSession
		if req != nil {
			ss = req.Session
			if req.Params != nil {
				raw = req.Params.Arguments
			}
		}

		payload, sessionID, err := d.call(ctx, h, ss, raw)
		elapsed := time.Since(start)

		var kind string
		result, err := shape(payload, err)
		if err != nil {
			apiErr := apierror.As(err)
			kind = string(apiErr.Kind)
			result = errorResult(apiErr)
		}
		d.Metrics.RecordToolCall(ctx, name, kind, elapsed)

		event := d.Logger.Info()
		if kind != "" {
			event = d.Logger.Warn().Str("kind", kind).Err(err)
		}
		event.Str("tool", name).Str("session", sessionID).Dur("duration", elapsed).Msg("tool call")
		return result, nil
	}
}

func (d *Dispatcher) call(ctx context.Context, h Handler, ss *mcp.ServerSession, raw json.RawMessage) (payload any, sessionID string, err error) {
	if d.Gate != nil {
		if !d.Gate.Enter() {
			return nil, "", apierror.New(apierror.KindTransient, "server is shutting down; retry against a new instance")
		}
		defer d.Gate.Exit()
	}
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = apierror.New(apierror.KindUnexpectedResponse, "tool %s failed: %v", h.Definition().Name, r)
		}
	}()

	if err := h.Validate(raw); err != nil {
		return nil, "", err
	}
	s, err := d.Sessions.Resolve(ss)
	if err != nil {
		return nil, "", err
	}
	payload, err = h.Invoke(ctx, s, raw)
	return payload, s.ID, err
}

func shape(payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return nil, err
	}
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUnexpectedResponse, err, "failed to encode result")
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: payload,
	}, nil
}

func errorResult(e *apierror.Error) *mcp.CallToolResult {
	body := ErrorBody{Error: ErrorDetail{
		Kind:      e.Kind,
		Message:   e.Message,
		Status:    e.Status,
		Resource:  e.Resource,
		ID:        e.ID,
		Retryable: e.Retryable(),
	}}
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %s", e.Kind, e.Message)}},
		StructuredContent: body,
	}
}
