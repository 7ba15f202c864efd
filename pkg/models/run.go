package models

import (
	"encoding/json"
	"sort"
)

// RunRequest is the body of POST /api/v1/run/{flow_id}.
type RunRequest struct {
	InputValue      string                    `json:"input_value"`
	InputType       string                    `json:"input_type,omitempty"`
	OutputType      string                    `json:"output_type,omitempty"`
	OutputComponent string                    `json:"output_component,omitempty"`
	Tweaks          map[string]map[string]any `json:"tweaks,omitempty"`
	SessionID       string                    `json:"session_id,omitempty"`
}

// RunResponse is Langflow's non-streaming run result.
type RunResponse struct {
	SessionID string       `json:"session_id"`
	Outputs   []RunOutputs `json:"outputs"`
}

type RunOutputs struct {
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs []ResultData   `json:"outputs"`
}

// ResultData is the output of a single output component.
type ResultData struct {
	Results              map[string]json.RawMessage `json:"results,omitempty"`
	Messages             []ChatOutput               `json:"messages,omitempty"`
	ComponentID          string                     `json:"component_id,omitempty"`
	ComponentDisplayName string                     `json:"component_display_name,omitempty"`
}

type ChatOutput struct {
	Message     json.RawMessage `json:"message,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	SenderName  string          `json:"sender_name,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	ComponentID string          `json:"component_id,omitempty"`
}

// RunComponentOutput is one component's textual output.
type RunComponentOutput struct {
	ComponentID          string `json:"component_id,omitempty"`
	ComponentDisplayName string `json:"component_display_name,omitempty"`
	Text                 string `json:"text"`
}

// ComponentOutputs extracts the text produced by every output component, in
// response order. Components without textual output are skipped.
func (r *RunResponse) ComponentOutputs() []RunComponentOutput {
	out := []RunComponentOutput{}
	for _, group := range r.Outputs {
		for _, rd := range group.Outputs {
			text, ok := rd.text()
			if !ok {
				continue
			}
			out = append(out, RunComponentOutput{
				ComponentID:          rd.ComponentID,
				ComponentDisplayName: rd.ComponentDisplayName,
				Text:                 text,
			})
		}
	}
	return out
}

func (rd ResultData) text() (string, bool) {
	// "message" is the chat output key; other keys are tried in a stable order.
	keys := make([]string, 0, len(rd.Results))
	for k := range rd.Results {
		if k != "message" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := rd.Results["message"]; ok {
		keys = append([]string{"message"}, keys...)
	}
	for _, k := range keys {
		if text, ok := textOf(rd.Results[k]); ok {
			return text, true
		}
	}
	for _, m := range rd.Messages {
		if text, ok := textOf(m.Message); ok {
			return text, true
		}
	}
	return "", false
}

func textOf(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != nil {
		return *obj.Text, true
	}
	return "", false
}

// RunResult is the shaped run returned to MCP callers.
type RunResult struct {
	RunID   string               `json:"run_id"`
	FlowID  string               `json:"flow_id"`
	Status  string               `json:"status"`
	Input   map[string]any       `json:"input"`
	Output  map[string]any       `json:"output,omitempty"`
	Outputs []RunComponentOutput `json:"outputs"`
	Raw     *RunResponse         `json:"raw,omitempty"`
}

const (
	RunStatusCompleted = "completed"
	RunStatusNoOutput  = "no_output"
)
