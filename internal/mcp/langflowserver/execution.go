package langflowserver

import (
	"context"
	"encoding/json"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

const (
	defaultInputType  = "chat"
	defaultOutputType = "chat"
)

type runFlowArgs struct {
	FlowID          string                    `json:"flow_id" jsonschema:"the flow id or endpoint name"`
	Input           map[string]any            `json:"input" jsonschema:"input payload; text is sent as the flow's input value"`
	InputType       string                    `json:"input_type,omitempty" jsonschema:"chat, text or any (default chat)"`
	OutputType      string                    `json:"output_type,omitempty" jsonschema:"chat, text, any or debug (default chat)"`
	OutputComponent string                    `json:"output_component,omitempty" jsonschema:"only return this output component"`
	SessionID       string                    `json:"session_id,omitempty" jsonschema:"continue an earlier run's conversation"`
	Tweaks          map[string]map[string]any `json:"tweaks,omitempty" jsonschema:"per-component parameter overrides keyed by component id"`
	IncludeRaw      bool                      `json:"include_raw,omitempty" jsonschema:"include Langflow's unprocessed response"`
}

var runIOTypes = map[string]bool{"chat": true, "text": true, "any": true, "debug": true}

func executionTools() []Handler {
	return []Handler{
		newTool(toolSpec[runFlowArgs]{
			name:        "run_flow",
			description: "Run a flow synchronously and return its text output.",
			check:       checkRunFlow,
			run:         runFlow,
		}),
	}
}

func checkRunFlow(in *runFlowArgs) error {
	if err := requireArg("flow_id", in.FlowID); err != nil {
		return err
	}
	if in.Input == nil {
		return apierror.New(apierror.KindValidation, "input is required")
	}
	if in.InputType != "" && (!runIOTypes[in.InputType] || in.InputType == "debug") {
		return apierror.New(apierror.KindValidation, "unsupported input_type %q", in.InputType)
	}
	if in.OutputType != "" && !runIOTypes[in.OutputType] {
		return apierror.New(apierror.KindValidation, "unsupported output_type %q", in.OutputType)
	}
	return nil
}

func runFlow(ctx context.Context, s *session.Session, in *runFlowArgs) (any, error) {
	value, err := inputValue(in.Input)
	if err != nil {
		return nil, err
	}
	req := &models.RunRequest{
		InputValue:      value,
		InputType:       orDefault(in.InputType, defaultInputType),
		OutputType:      orDefault(in.OutputType, defaultOutputType),
		OutputComponent: in.OutputComponent,
		Tweaks:          in.Tweaks,
		SessionID:       in.SessionID,
	}

	resp, err := s.Client.RunFlow(ctx, in.FlowID, req)
	if err != nil {
		return nil, err
	}

	outputs := resp.ComponentOutputs()
	result := models.RunResult{
		RunID:   resp.SessionID,
		FlowID:  in.FlowID,
		Status:  models.RunStatusNoOutput,
		Input:   in.Input,
		Outputs: outputs,
	}
	if len(outputs) > 0 {
		result.Status = models.RunStatusCompleted
		result.Output = map[string]any{"text": outputs[0].Text}
	}
	if in.IncludeRaw {
		result.Raw = resp
	}
	return result, nil
}

// inputValue picks input.text when it is a string and otherwise sends the whole
// input object as JSON text.
func inputValue(input map[string]any) (string, error) {
	if text, ok := input["text"].(string); ok {
		return text, nil
	}
	if len(input) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", apierror.Wrap(apierror.KindValidation, err, "encode input")
	}
	return string(raw), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
