package langflowserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
)

// Handler adapts one MCP tool onto Langflow API calls.
type Handler interface {
	// Definition is the tool advertised to MCP clients.
	Definition() *mcp.Tool
	// Validate checks arguments against the input schema and the tool's own
	// rules. It never performs I/O.
	Validate(raw json.RawMessage) error
	// Invoke runs the tool. Arguments have already passed Validate.
	Invoke(ctx context.Context, s *session.Session, raw json.RawMessage) (any, error)
}

// tool is the Handler for a typed argument struct In. The input schema is
// inferred from In; fields without omitempty are required.
type tool[In any] struct {
	def      *mcp.Tool
	resolved *jsonschema.Resolved
	check    func(*In) error
	run      func(context.Context, *session.Session, *In) (any, error)
}

type toolSpec[In any] struct {
	name        string
	description string
	readOnly    bool
	destructive bool
	check       func(*In) error
	run         func(context.Context, *session.Session, *In) (any, error)
}

// newTool panics when the schema cannot be inferred, like mcp.AddTool.
func newTool[In any](spec toolSpec[In]) Handler {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tool %q: infer input schema: %v", spec.name, err))
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tool %q: resolve input schema: %v", spec.name, err))
	}

	annotations := &mcp.ToolAnnotations{ReadOnlyHint: spec.readOnly}
	if !spec.readOnly {
		destructive := spec.destructive
		annotations.DestructiveHint = &destructive
	}
	return &tool[In]{
		def: &mcp.Tool{
			Name:        spec.name,
			Description: spec.description,
			InputSchema: schema,
			Annotations: annotations,
		},
		resolved: resolved,
		check:    spec.check,
		run:      spec.run,
	}
}

func (t *tool[In]) Definition() *mcp.Tool { return t.def }

func (t *tool[In]) Validate(raw json.RawMessage) error {
	instance, err := argumentObject(raw)
	if err != nil {
		return err
	}
	if err := t.resolved.Validate(instance); err != nil {
		return apierror.New(apierror.KindValidation, "invalid arguments for %s: %v", t.def.Name, err)
	}
	in, err := t.decode(raw)
	if err != nil {
		return err
	}
	if t.check != nil {
		return t.check(in)
	}
	return nil
}

func (t *tool[In]) Invoke(ctx context.Context, s *session.Session, raw json.RawMessage) (any, error) {
	in, err := t.decode(raw)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, s, in)
}

func (t *tool[In]) decode(raw json.RawMessage) (*In, error) {
	in := new(In)
	if isEmptyArguments(raw) {
		return in, nil
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, apierror.New(apierror.KindValidation, "invalid arguments for %s: %v", t.def.Name, err)
	}
	return in, nil
}

func argumentObject(raw json.RawMessage) (map[string]any, error) {
	if isEmptyArguments(raw) {
		return map[string]any{}, nil
	}
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, apierror.New(apierror.KindValidation, "arguments must be a JSON object")
	}
	return instance, nil
}

func isEmptyArguments(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// requireArg rejects blank string arguments, which the schema alone accepts.
func requireArg(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apierror.New(apierror.KindValidation, "%s is required", name)
	}
	return nil
}
