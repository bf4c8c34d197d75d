package quota

import (
	"fmt"
	"time"
)

// Usage is a point-in-time view of a user's daily token budget, taken
// after rollover, so it always describes the current UTC day.
type Usage struct {
	Role         string    `json:"role"`
	Limit        int       `json:"limit"`
	TokensUsed   int       `json:"tokens_used"`
	Remaining    int       `json:"remaining"`
	RequestCount int       `json:"request_count"`
	ResetsAt     time.Time `json:"resets_at"`
}

// ExceededError reports an admission rejection because the daily limit
// is already spent. Recoverable by waiting for the UTC-midnight reset.
type ExceededError struct {
	Usage Usage
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily token limit reached: %d/%d tokens used", e.Usage.TokensUsed, e.Usage.Limit)
}

// WouldExceedError reports that this specific request's estimated cost
// does not fit the remaining budget. The caller can shorten the prompt
// or wait for the reset.
type WouldExceedError struct {
	Usage     Usage
	Estimated int
}

func (e *WouldExceedError) Error() string {
	return fmt.Sprintf("request estimated at %d tokens exceeds remaining budget of %d", e.Estimated, e.Usage.Remaining)
}

// EstimateTokens approximates token count as ceil(len/4). A deliberate
// coarse heuristic, not a tokenizer; applied uniformly to prompts and
// responses so admission and accounting agree.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// UTCDay truncates t to its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextReset returns the upcoming UTC midnight.
func NextReset(t time.Time) time.Time {
	return UTCDay(t).Add(24 * time.Hour)
}
