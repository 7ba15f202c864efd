package langflowserver

import (
	"context"

	"github.com/langflow-mcp/langflow-mcp/internal/apierror"
	"github.com/langflow-mcp/langflow-mcp/internal/client"
	"github.com/langflow-mcp/langflow-mcp/internal/session"
	"github.com/langflow-mcp/langflow-mcp/pkg/models"
)

type listMessagesArgs struct {
	FlowID    string `json:"flow_id" jsonschema:"the flow whose messages to list"`
	SessionID string `json:"session_id,omitempty" jsonschema:"only messages of this run session"`
	Sender    string `json:"sender,omitempty" jsonschema:"User or Machine"`
}

func monitoringTools() []Handler {
	return []Handler{
		newTool(toolSpec[listMessagesArgs]{
			name:        "list_messages",
			description: "List the chat messages stored for a flow, oldest first.",
			readOnly:    true,
			check: func(in *listMessagesArgs) error {
				if err := requireArg("flow_id", in.FlowID); err != nil {
					return err
				}
				switch in.Sender {
				case "", "User", "Machine":
					return nil
				}
				return apierror.New(apierror.KindValidation, "sender must be User or Machine, got %q", in.Sender)
			},
			run: listMessages,
		}),
	}
}

func listMessages(ctx context.Context, s *session.Session, in *listMessagesArgs) (any, error) {
	messages, err := s.Client.ListMessages(ctx, client.MessageFilter{
		FlowID:    in.FlowID,
		SessionID: in.SessionID,
		Sender:    in.Sender,
	})
	if err != nil {
		return nil, err
	}
	return models.MessageListResponse{Messages: messages, Count: len(messages)}, nil
}
