package messages

import "encoding/json"

// ClientMessage represents a message from a frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "chat", "control"
	Payload json.RawMessage `json:"payload"`
}

// ChatPayload contains one user chat turn
type ChatPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "ping", "stop"
}
