package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/config"
	"github.com/Lideeyah/DevAssist-sub000/internal/users"
)

// Store is the user-record surface the ledger needs. The users
// repository satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetDailyUsage(ctx context.Context, userID uuid.UUID) (*users.DailyUsage, error)
	ResetDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
	IncrementDailyUsage(ctx context.Context, userID uuid.UUID, tokens int) error
}

// Ledger enforces role-tiered daily token quotas with lazy UTC-midnight
// rollover. It is the only component that mutates daily usage.
//
// Reserve and Commit are deliberately not transactional as a pair: two
// concurrent requests from one user can both pass Reserve against the
// same snapshot and overshoot the limit by one in-flight request's
// tokens. Commit itself is a single atomic increment and never loses an
// update.
type Ledger struct {
	store  Store
	limits map[string]int
	lowest int

	// now is swappable for rollover tests.
	now func() time.Time
}

func NewLedger(store Store, cfg config.QuotaConfig) *Ledger {
	limits := map[string]int{
		users.RoleStandard: cfg.StandardDailyTokens,
		users.RoleBusiness: cfg.BusinessDailyTokens,
		users.RoleAdmin:    cfg.AdminDailyTokens,
	}
	lowest := cfg.StandardDailyTokens
	for _, l := range limits {
		if l < lowest {
			lowest = l
		}
	}
	return &Ledger{
		store:  store,
		limits: limits,
		lowest: lowest,
		now:    time.Now,
	}
}

// DailyLimit maps a role to its daily token limit. Unknown roles fall
// back to the lowest tier.
func (l *Ledger) DailyLimit(role string) int {
	if limit, ok := l.limits[role]; ok {
		return limit
	}
	return l.lowest
}

// RolloverIfStale zeroes the user's bucket when its stored date is
// before the current UTC day. Every ledger entry point calls this
// first, so the documented "read triggers a lazy reset write" side
// effect lives in exactly one named place.
func (l *Ledger) RolloverIfStale(ctx context.Context, userID uuid.UUID) error {
	_, err := l.store.ResetDailyUsage(ctx, userID, UTCDay(l.now()))
	if err != nil {
		return fmt.Errorf("rolling over daily usage: %w", err)
	}
	return nil
}

// Usage returns the user's current budget view for the current UTC day.
func (l *Ledger) Usage(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	if err := l.RolloverIfStale(ctx, userID); err != nil {
		return nil, err
	}

	du, err := l.store.GetDailyUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading daily usage: %w", err)
	}
	if du == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	limit := l.DailyLimit(du.Role)
	remaining := limit - du.TokensUsed
	if remaining < 0 {
		remaining = 0
	}

	return &Usage{
		Role:         du.Role,
		Limit:        limit,
		TokensUsed:   du.TokensUsed,
		Remaining:    remaining,
		RequestCount: du.RequestCount,
		ResetsAt:     NextReset(l.now()),
	}, nil
}

// HasExceeded reports whether the user's daily budget is spent.
func (l *Ledger) HasExceeded(ctx context.Context, userID uuid.UUID) (bool, error) {
	usage, err := l.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return usage.TokensUsed >= usage.Limit, nil
}

// Reserve is the advisory admission pre-check: it rejects requests that
// would not fit the remaining budget but places no hold on it. Returns
// the usage snapshot the decision was made against.
func (l *Ledger) Reserve(ctx context.Context, userID uuid.UUID, estimatedTokens int) (*Usage, error) {
	usage, err := l.Usage(ctx, userID)
	if err != nil {
		return nil, err
	}

	if usage.TokensUsed >= usage.Limit {
		return nil, &ExceededError{Usage: *usage}
	}
	if estimatedTokens > usage.Remaining {
		return nil, &WouldExceedError{Usage: *usage, Estimated: estimatedTokens}
	}
	return usage, nil
}

// Commit records the measured cost of a completed attempt. Called after
// the generation finishes, success or failure; failed attempts still
// consume their estimated tokens.
func (l *Ledger) Commit(ctx context.Context, userID uuid.UUID, actualTokens int) error {
	if err := l.RolloverIfStale(ctx, userID); err != nil {
		return err
	}
	if err := l.store.IncrementDailyUsage(ctx, userID, actualTokens); err != nil {
		return fmt.Errorf("committing token usage: %w", err)
	}
	return nil
}
