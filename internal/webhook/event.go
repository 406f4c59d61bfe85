package webhook

import (
	"encoding/json"
	"strings"

	"github.com/quantumflow/callengine/internal/models"
)

// Event types sent by the voice platform
const (
	EventFunctionCall       = "function-call"
	EventCallStarted        = "call-started"
	EventCallEnded          = "call-ended"
	EventConversationUpdate = "conversation-update"
	EventTransferRequest    = "transfer-request"
	EventStatusUpdate       = "status-update"
	EventTranscript         = "transcript"
)

// Call identifies the call an event belongs to
type Call struct {
	ID             string `json:"id"`
	CustomerNumber string `json:"customerNumber"`
}

// FunctionCall is a named operation requested by the assistant
type FunctionCall struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Event is the inbound envelope
type Event struct {
	Type         string                   `json:"type"`
	Call         Call                     `json:"call"`
	FunctionCall *FunctionCall            `json:"functionCall,omitempty"`
	Transcript   string                   `json:"transcript,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Role         string                   `json:"role,omitempty"`
	Status       string                   `json:"status,omitempty"`
	EndedReason  string                   `json:"endedReason,omitempty"`
	Reason       string                   `json:"reason,omitempty"`
	Language     string                   `json:"language,omitempty"`
	Usage        *models.Usage            `json:"usage,omitempty"`
	Messages     []map[string]interface{} `json:"messages,omitempty"`
}

// ParseEvent decodes an envelope; malformed input yields a ValidationError
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, validationf("malformed event: %v", err)
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return nil, validationf("event type is required")
	}
	return &event, nil
}
