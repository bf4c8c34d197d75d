package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds all service events.
const StreamEvents = "DEVASSIST_EVENTS"

// Subject constants.
const (
	SubjectGenerationEvent = "devassist.events.generation"
	SubjectAuditEvent      = "devassist.events.audit"
)

// GenerationEvent is published when a generation request reaches a
// terminal state.
type GenerationEvent struct {
	InteractionID uuid.UUID `json:"interaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	Mode          string    `json:"mode"`
	Strategy      string    `json:"strategy"`
	Model         string    `json:"model,omitempty"`
	Status        string    `json:"status"`
	TokensTotal   int       `json:"tokens_total"`
	DurationMs    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// AuditEvent is published for compliance/audit logging.
type AuditEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}
