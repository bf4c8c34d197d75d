package users

import (
	"time"

	"github.com/google/uuid"
)

// Quota roles. Unknown values are treated as RoleStandard by the ledger.
const (
	RoleStandard = "standard"
	RoleBusiness = "business"
	RoleAdmin    = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DailyUsage is the per-user daily token bucket. UsageDate is a UTC
// calendar day; a stale date means the bucket has not been rolled over
// yet and reads as zero.
type DailyUsage struct {
	UserID       uuid.UUID `json:"user_id"`
	Role         string    `json:"role"`
	UsageDate    time.Time `json:"usage_date"`
	TokensUsed   int       `json:"tokens_used"`
	RequestCount int       `json:"request_count"`
}
