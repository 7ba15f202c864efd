package models

// Message is a stored chat message from GET /api/v1/monitor/messages.
type Message struct {
	ID         string `json:"id"`
	FlowID     string `json:"flow_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Sender     string `json:"sender,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}
