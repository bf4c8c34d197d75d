package history

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
)

// fakeRepo mirrors the status guard of the SQL implementation: a record
// finalizes only while pending.
type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Interaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[uuid.UUID]*Interaction{}}
}

func (f *fakeRepo) Create(ctx context.Context, in *Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *in
	f.records[in.ID] = &clone
	return nil
}

func (f *fakeRepo) Complete(ctx context.Context, id uuid.UUID, in *Interaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[id]
	if !ok || existing.Status != StatusPending {
		return false, nil
	}
	clone := *in
	f.records[id] = &clone
	return true, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	clone := *in
	return &clone, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var owned []*Interaction
	for _, in := range f.records {
		if in.UserID != userID {
			continue
		}
		if filter.Mode != "" && in.Mode != filter.Mode {
			continue
		}
		if filter.ProjectID != nil && (in.ProjectID == nil || *in.ProjectID != *filter.ProjectID) {
			continue
		}
		owned = append(owned, in)
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := len(owned)
	if offset >= total {
		return []Summary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	summaries := []Summary{}
	for _, in := range owned[offset:end] {
		summaries = append(summaries, Summary{
			ID:            in.ID,
			Mode:          in.Mode,
			PromptPreview: PromptPreview(in.Prompt),
			Status:        in.Status,
			TokensTotal:   in.TokensTotal,
			CreatedAt:     in.CreatedAt,
		})
	}
	return summaries, total, nil
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.records[id]
	if !ok || in.UserID != userID {
		return false, nil
	}
	delete(f.records, id)
	return true, nil
}

func (f *fakeRepo) StatsByUser(ctx context.Context, userID uuid.UUID, sinceDays int) (*Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &Stats{ByMode: map[string]int{}, ByStrategy: map[string]int{}}
	for _, in := range f.records {
		if in.UserID != userID {
			continue
		}
		stats.TotalInteractions++
		stats.TotalTokens += in.TokensTotal
		stats.ByMode[in.Mode]++
		if in.Strategy != "" {
			stats.ByStrategy[in.Strategy]++
		}
		switch in.Status {
		case StatusSuccess:
			stats.SuccessCount++
		case StatusFailure:
			stats.FailureCount++
		}
	}
	return stats, nil
}

func newTestRecorder() (*Recorder, *fakeRepo) {
	repo := newFakeRepo()
	return NewRecorder(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestRecorder_BeginCreatesPending(t *testing.T) {
	recorder, repo := newTestRecorder()
	userID := uuid.New()

	in, err := recorder.Begin(context.Background(), userID, nil, "generate", "make a navbar", 42, nil)
	require.NoError(t, err)

	stored := repo.records[in.ID]
	require.NotNil(t, stored)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, 42, stored.TokensInput)
	assert.NotNil(t, stored.ContextFiles)
}

func TestRecorder_CompleteSuccess(t *testing.T) {
	recorder, repo := newTestRecorder()
	userID := uuid.New()

	in, err := recorder.Begin(context.Background(), userID, nil, "generate", "make a navbar", 40, nil)
	require.NoError(t, err)

	recorder.CompleteSuccess(context.Background(), in, "const x = 1", "gpt2", "primary", 10, 1500*time.Millisecond)

	stored := repo.records[in.ID]
	assert.Equal(t, StatusSuccess, stored.Status)
	assert.Equal(t, "const x = 1", stored.Response)
	assert.Equal(t, 50, stored.TokensTotal)
	assert.Equal(t, int64(1500), stored.ResponseTimeMs)
}

func TestRecorder_FinalizeExactlyOnce(t *testing.T) {
	recorder, repo := newTestRecorder()
	userID := uuid.New()

	in, err := recorder.Begin(context.Background(), userID, nil, "explain", "what is this", 10, nil)
	require.NoError(t, err)

	recorder.CompleteFailure(context.Background(), in, "provider down", time.Second)

	// A second finalization attempt must not overwrite the first.
	again := *in
	recorder.CompleteSuccess(context.Background(), &again, "late text", "m", "fallback", 5, time.Second)

	stored := repo.records[in.ID]
	assert.Equal(t, StatusFailure, stored.Status)
	assert.Equal(t, "provider down", stored.ErrorMessage)
	assert.Empty(t, stored.Response)
}

func TestRecorder_GetForUser_OwnershipAsNotFound(t *testing.T) {
	recorder, _ := newTestRecorder()
	owner := uuid.New()
	stranger := uuid.New()

	in, err := recorder.Begin(context.Background(), owner, nil, "generate", "p", 1, nil)
	require.NoError(t, err)

	got, err := recorder.GetForUser(context.Background(), in.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)

	_, err = recorder.GetForUser(context.Background(), in.ID, stranger)
	assert.ErrorIs(t, err, api.ErrInteractionNotFound)

	_, err = recorder.GetForUser(context.Background(), uuid.New(), owner)
	assert.ErrorIs(t, err, api.ErrInteractionNotFound)
}

func TestRecorder_DeleteForUser(t *testing.T) {
	recorder, repo := newTestRecorder()
	owner := uuid.New()

	in, err := recorder.Begin(context.Background(), owner, nil, "generate", "p", 1, nil)
	require.NoError(t, err)

	require.NoError(t, recorder.DeleteForUser(context.Background(), in.ID, owner))
	assert.Empty(t, repo.records)

	err = recorder.DeleteForUser(context.Background(), in.ID, owner)
	assert.ErrorIs(t, err, api.ErrInteractionNotFound)
}

func TestRecorder_ListForUser_ClampsPagination(t *testing.T) {
	recorder, _ := newTestRecorder()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := recorder.Begin(context.Background(), owner, nil, "generate", "p", 1, nil)
		require.NoError(t, err)
	}

	summaries, total, err := recorder.ListForUser(context.Background(), owner, ListFilter{}, -5, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, summaries, 3)
}

func TestRecorder_ListForUser_ModeFilter(t *testing.T) {
	recorder, _ := newTestRecorder()
	owner := uuid.New()

	_, err := recorder.Begin(context.Background(), owner, nil, "generate", "p1", 1, nil)
	require.NoError(t, err)
	_, err = recorder.Begin(context.Background(), owner, nil, "explain", "p2", 1, nil)
	require.NoError(t, err)

	summaries, total, err := recorder.ListForUser(context.Background(), owner, ListFilter{Mode: "explain"}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, summaries, 1)
	assert.Equal(t, "explain", summaries[0].Mode)
}

func TestRecorder_StatsForUser(t *testing.T) {
	recorder, _ := newTestRecorder()
	owner := uuid.New()

	a, _ := recorder.Begin(context.Background(), owner, nil, "generate", "p1", 10, []prompt.ContextFile{})
	recorder.CompleteSuccess(context.Background(), a, "out", "m", "primary", 5, time.Second)

	b, _ := recorder.Begin(context.Background(), owner, nil, "explain", "p2", 20, nil)
	recorder.CompleteFailure(context.Background(), b, "boom", time.Second)

	stats, err := recorder.StatsForUser(context.Background(), owner, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalInteractions)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 35, stats.TotalTokens)
	assert.Equal(t, 1, stats.ByMode["generate"])
	assert.Equal(t, 1, stats.ByMode["explain"])
	assert.Equal(t, 1, stats.ByStrategy["primary"])
}

func TestPromptPreview(t *testing.T) {
	short := "short prompt"
	assert.Equal(t, short, PromptPreview(short))

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	preview := PromptPreview(string(long))
	assert.Len(t, preview, 123)
	assert.True(t, preview[120] == '.')
}
