package messages

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeEngineError    = "ENGINE_ERROR"
	ErrCodeSessionFailed  = "SESSION_FAILED"
	ErrCodeBufferFull     = "BUFFER_FULL"
)

// Message types
const (
	TypeContent = "content"
	TypeStatus  = "status"
	TypeDone    = "done"
	TypeError   = "error"
)

// ServerMessage represents a message sent to a frontend client
type ServerMessage struct {
	Type      string      `json:"type"` // "content", "status", "done", "error"
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload"`
}

// ContentPayload contains a content fragment of the reply
type ContentPayload struct {
	Text string `json:"text"`
}

// StatusPayload contains a progress status line
type StatusPayload struct {
	Text string `json:"text"`
}

// DonePayload marks the end of a turn
type DonePayload struct {
	Stopped bool `json:"stopped,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewContentMessage creates a content fragment message
func NewContentMessage(sessionID, text string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeContent,
		SessionID: sessionID,
		Payload:   ContentPayload{Text: text},
	}
}

// NewStatusMessage creates a status fragment message
func NewStatusMessage(sessionID, text string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload:   StatusPayload{Text: text},
	}
}

// NewDoneMessage creates an end-of-turn message
func NewDoneMessage(sessionID string, stopped bool) *ServerMessage {
	return &ServerMessage{
		Type:      TypeDone,
		SessionID: sessionID,
		Payload:   DonePayload{Stopped: stopped},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload:   ErrorPayload{Code: code, Message: message},
	}
}
