package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
)

// Interaction statuses. An interaction is created pending and moves to
// exactly one terminal status.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Interaction is one recorded generation request. Response holds the
// full generated text and is omitted from list projections.
type Interaction struct {
	ID             uuid.UUID            `json:"id"`
	UserID         uuid.UUID            `json:"user_id"`
	ProjectID      *uuid.UUID           `json:"project_id,omitempty"`
	Mode           string               `json:"mode"`
	Prompt         string               `json:"prompt"`
	Response       string               `json:"response,omitempty"`
	Model          string               `json:"model,omitempty"`
	Strategy       string               `json:"strategy,omitempty"`
	Status         string               `json:"status"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	TokensInput    int                  `json:"tokens_input"`
	TokensOutput   int                  `json:"tokens_output"`
	TokensTotal    int                  `json:"tokens_total"`
	ResponseTimeMs int64                `json:"response_time_ms"`
	ContextFiles   []prompt.ContextFile `json:"context_files"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Summary is the list projection: everything except the response body
// and the full prompt text.
type Summary struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      *uuid.UUID `json:"project_id,omitempty"`
	Mode           string     `json:"mode"`
	PromptPreview  string     `json:"prompt_preview"`
	Model          string     `json:"model,omitempty"`
	Strategy       string     `json:"strategy,omitempty"`
	Status         string     `json:"status"`
	TokensTotal    int        `json:"tokens_total"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Stats aggregates a user's interaction history.
type Stats struct {
	TotalInteractions int            `json:"total_interactions"`
	SuccessCount      int            `json:"success_count"`
	FailureCount      int            `json:"failure_count"`
	TotalTokens       int            `json:"total_tokens"`
	AvgResponseTimeMs float64        `json:"avg_response_time_ms"`
	ByMode            map[string]int `json:"by_mode"`
	ByStrategy        map[string]int `json:"by_strategy"`
}

// ListFilter narrows history queries. Zero values mean "no filter";
// SinceDays bounds the window to the last N days when positive.
type ListFilter struct {
	ProjectID *uuid.UUID
	Mode      string
	SinceDays int
}

const promptPreviewLen = 120

// PromptPreview truncates a prompt for list views.
func PromptPreview(p string) string {
	if len(p) <= promptPreviewLen {
		return p
	}
	return p[:promptPreviewLen] + "..."
}
