package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lideeyah/DevAssist-sub000/internal/config"
	"github.com/Lideeyah/DevAssist-sub000/internal/users"
)

// fakeStore is an in-memory Store with the same atomicity guarantees as
// the SQL implementation (single-lock read-modify-write).
type fakeStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*users.DailyUsage
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*users.DailyUsage)}
}

func (s *fakeStore) put(userID uuid.UUID, role string, day time.Time, tokens, requests int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = &users.DailyUsage{
		UserID:       userID,
		Role:         role,
		UsageDate:    day,
		TokensUsed:   tokens,
		RequestCount: requests,
	}
}

func (s *fakeStore) GetDailyUsage(_ context.Context, userID uuid.UUID) (*users.DailyUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *fakeStore) ResetDailyUsage(_ context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok || !row.UsageDate.Before(day) {
		return false, nil
	}
	row.UsageDate = day
	row.TokensUsed = 0
	row.RequestCount = 0
	return true, nil
}

func (s *fakeStore) IncrementDailyUsage(_ context.Context, userID uuid.UUID, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[userID]; ok {
		row.TokensUsed += tokens
		row.RequestCount++
	}
	return nil
}

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		StandardDailyTokens: 10_000,
		BusinessDailyTokens: 50_000,
		AdminDailyTokens:    200_000,
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 20, EstimateTokens(string(make([]byte, 80))))
}

func TestLedger_DailyLimit(t *testing.T) {
	ledger := NewLedger(newFakeStore(), testQuotaConfig())

	assert.Equal(t, 10_000, ledger.DailyLimit(users.RoleStandard))
	assert.Equal(t, 50_000, ledger.DailyLimit(users.RoleBusiness))
	assert.Equal(t, 200_000, ledger.DailyLimit(users.RoleAdmin))

	// Unknown roles fall back to the lowest tier
	assert.Equal(t, 10_000, ledger.DailyLimit("intern"))
	assert.Equal(t, 10_000, ledger.DailyLimit(""))
}

func TestLedger_DailyRollover(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, testQuotaConfig())
	userID := uuid.New()

	// Yesterday's bucket is fully spent
	yesterday := UTCDay(time.Now()).Add(-24 * time.Hour)
	store.put(userID, users.RoleStandard, yesterday, 10_000, 42)

	usage, err := ledger.Usage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.TokensUsed)
	assert.Equal(t, 10_000, usage.Remaining)
	assert.Equal(t, 0, usage.RequestCount)
}

func TestLedger_HasExceeded(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, testQuotaConfig())
	userID := uuid.New()
	today := UTCDay(time.Now())

	store.put(userID, users.RoleStandard, today, 9_999, 1)
	exceeded, err := ledger.HasExceeded(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, exceeded)

	store.put(userID, users.RoleStandard, today, 10_000, 2)
	exceeded, err = ledger.HasExceeded(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestLedger_Reserve(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, testQuotaConfig())
	userID := uuid.New()
	today := UTCDay(time.Now())
	ctx := context.Background()

	t.Run("fits remaining budget", func(t *testing.T) {
		store.put(userID, users.RoleStandard, today, 5_000, 10)
		usage, err := ledger.Reserve(ctx, userID, 2_000)
		require.NoError(t, err)
		assert.Equal(t, 5_000, usage.Remaining)
	})

	t.Run("estimate over remaining fails with WouldExceedError", func(t *testing.T) {
		// 80-char prompt estimates to 20 tokens, only 10 remain
		store.put(userID, users.RoleStandard, today, 9_990, 10)
		estimate := EstimateTokens(string(make([]byte, 80)))
		require.Equal(t, 20, estimate)

		_, err := ledger.Reserve(ctx, userID, estimate)
		var wouldExceed *WouldExceedError
		require.ErrorAs(t, err, &wouldExceed)
		assert.Equal(t, 10, wouldExceed.Usage.Remaining)
		assert.Equal(t, 20, wouldExceed.Estimated)
	})

	t.Run("spent budget fails with ExceededError", func(t *testing.T) {
		store.put(userID, users.RoleStandard, today, 10_000, 10)
		_, err := ledger.Reserve(ctx, userID, 1)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, 10_000, exceeded.Usage.TokensUsed)
	})

	t.Run("reserve does not mutate usage", func(t *testing.T) {
		store.put(userID, users.RoleStandard, today, 1_000, 3)
		_, err := ledger.Reserve(ctx, userID, 500)
		require.NoError(t, err)

		usage, err := ledger.Usage(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1_000, usage.TokensUsed)
		assert.Equal(t, 3, usage.RequestCount)
	})
}

func TestLedger_ConcurrentCommitsLoseNoUpdates(t *testing.T) {
	store := newFakeStore()
	ledger := NewLedger(store, testQuotaConfig())
	userID := uuid.New()
	store.put(userID, users.RoleStandard, UTCDay(time.Now()), 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ledger.Commit(context.Background(), userID, 100))
		}()
	}
	wg.Wait()

	usage, err := ledger.Usage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 5_000, usage.TokensUsed)
	assert.Equal(t, 50, usage.RequestCount)
}

func TestLedger_UnknownUser(t *testing.T) {
	ledger := NewLedger(newFakeStore(), testQuotaConfig())
	_, err := ledger.Usage(context.Background(), uuid.New())
	assert.Error(t, err)
}
