package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/history"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/provider"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/quota"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
	"github.com/Lideeyah/DevAssist-sub000/internal/config"
)

type fakeLedger struct {
	mu           sync.Mutex
	reserveCalls []int
	commitCalls  []int
	reserveErr   error
	usage        quota.Usage
}

func (f *fakeLedger) Reserve(ctx context.Context, userID uuid.UUID, estimated int) (*quota.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls = append(f.reserveCalls, estimated)
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	u := f.usage
	return &u, nil
}

func (f *fakeLedger) Commit(ctx context.Context, userID uuid.UUID, tokens int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls = append(f.commitCalls, tokens)
	return nil
}

func (f *fakeLedger) Usage(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	u := f.usage
	return &u, nil
}

type fakeContexts struct {
	files []prompt.ContextFile
	err   error
	calls int
}

func (f *fakeContexts) ContextForUser(ctx context.Context, projectID, userID uuid.UUID, budget int) ([]prompt.ContextFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	result *provider.Result
}

func (f *fakeGenerator) Generate(ctx context.Context, req provider.Request) *provider.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

// fakeHistoryRepo is the minimal in-memory Repository the recorder needs.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*history.Interaction
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{records: map[uuid.UUID]*history.Interaction{}}
}

func (f *fakeHistoryRepo) Create(ctx context.Context, in *history.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *in
	f.records[in.ID] = &clone
	return nil
}

func (f *fakeHistoryRepo) Complete(ctx context.Context, id uuid.UUID, in *history.Interaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[id]
	if !ok || existing.Status != history.StatusPending {
		return false, nil
	}
	clone := *in
	f.records[id] = &clone
	return true, nil
}

func (f *fakeHistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*history.Interaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	clone := *in
	return &clone, nil
}

func (f *fakeHistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter history.ListFilter, limit, offset int) ([]history.Summary, int, error) {
	return nil, 0, nil
}

func (f *fakeHistoryRepo) DeleteByID(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeHistoryRepo) StatsByUser(ctx context.Context, userID uuid.UUID, sinceDays int) (*history.Stats, error) {
	return &history.Stats{}, nil
}

func (f *fakeHistoryRepo) only(t *testing.T) *history.Interaction {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.records, 1)
	for _, in := range f.records {
		return in
	}
	return nil
}

type pipeline struct {
	svc       *Service
	ledger    *fakeLedger
	contexts  *fakeContexts
	generator *fakeGenerator
	repo      *fakeHistoryRepo
}

func newPipeline() *pipeline {
	ledger := &fakeLedger{usage: quota.Usage{
		Role:      "standard",
		Limit:     10000,
		Remaining: 10000,
		ResetsAt:  time.Now().UTC().Add(time.Hour),
	}}
	contexts := &fakeContexts{}
	generator := &fakeGenerator{result: &provider.Result{
		Text:     "generated text",
		Strategy: provider.StrategyPrimary,
		Model:    "test-model",
	}}
	repo := newFakeHistoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := history.NewRecorder(repo, logger)
	svc := NewService(ledger, contexts, generator, recorder, nil, config.QuotaConfig{
		ContextTokenBudget: 40000,
		MaxPromptChars:     20000,
	}, logger)
	return &pipeline{svc: svc, ledger: ledger, contexts: contexts, generator: generator, repo: repo}
}

func TestGenerate_SuccessPath(t *testing.T) {
	p := newPipeline()
	userID := uuid.New()

	resp, err := p.svc.Generate(context.Background(), userID, &GenerateRequest{Prompt: "make a navbar"})
	require.NoError(t, err)

	composed := prompt.Compose("make a navbar", prompt.ModeGenerate, nil)
	wantInput := quota.EstimateTokens(composed)
	wantOutput := quota.EstimateTokens("generated text")

	assert.Equal(t, "generated text", resp.Response)
	assert.Equal(t, provider.StrategyPrimary, resp.Strategy)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, wantInput, resp.TokensInput)
	assert.Equal(t, wantOutput, resp.TokensOutput)
	assert.Equal(t, wantInput+wantOutput, resp.TokensTotal)

	// Admission saw the composed prompt's estimate; the commit covers
	// input plus output.
	assert.Equal(t, []int{wantInput}, p.ledger.reserveCalls)
	assert.Equal(t, []int{wantInput + wantOutput}, p.ledger.commitCalls)

	record := p.repo.only(t)
	assert.Equal(t, history.StatusSuccess, record.Status)
	assert.Equal(t, "generated text", record.Response)
	assert.Equal(t, "make a navbar", record.Prompt)
}

func TestGenerate_QuotaRejectionLeavesNoTrace(t *testing.T) {
	p := newPipeline()
	p.ledger.reserveErr = &quota.ExceededError{Usage: quota.Usage{
		Limit:      10000,
		TokensUsed: 10000,
		ResetsAt:   time.Now().UTC().Add(time.Hour),
	}}

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: "p"})
	require.Error(t, err)

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)

	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10000, details["limit"])
	assert.Equal(t, 10000, details["used"])

	// Rejected at admission: nothing generated, recorded, or committed.
	assert.Equal(t, 0, p.generator.calls)
	assert.Empty(t, p.repo.records)
	assert.Empty(t, p.ledger.commitCalls)
}

func TestGenerate_WouldExceedRejection(t *testing.T) {
	p := newPipeline()
	p.ledger.reserveErr = &quota.WouldExceedError{
		Usage:     quota.Usage{Limit: 10000, TokensUsed: 9990, Remaining: 10},
		Estimated: 50,
	}

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: "p"})

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.Equal(t, 0, p.generator.calls)
}

func TestGenerate_OversizedPromptRejected(t *testing.T) {
	p := newPipeline()

	huge := make([]byte, 20001)
	for i := range huge {
		huge[i] = 'a'
	}

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: string(huge)})

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Empty(t, p.ledger.reserveCalls)
	assert.Empty(t, p.repo.records)
}

func TestGenerate_ContextErrorsPropagate(t *testing.T) {
	p := newPipeline()
	p.contexts.err = api.ErrOwnershipViolation
	projectID := uuid.New()

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{
		Prompt:    "p",
		ProjectID: &projectID,
	})

	assert.ErrorIs(t, err, api.ErrOwnershipViolation)
	assert.Equal(t, 0, p.generator.calls)
	assert.Empty(t, p.ledger.reserveCalls)
	assert.Empty(t, p.repo.records)
}

func TestGenerate_EmptyResultCommitsAndRecordsFailure(t *testing.T) {
	p := newPipeline()
	p.generator.result = &provider.Result{Text: ""}

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, api.ErrGenerationFailed)

	// Failure still consumes the estimated input tokens.
	composed := prompt.Compose("p", prompt.ModeGenerate, nil)
	assert.Equal(t, []int{quota.EstimateTokens(composed)}, p.ledger.commitCalls)

	record := p.repo.only(t)
	assert.Equal(t, history.StatusFailure, record.Status)
	assert.Equal(t, "generation produced no output", record.ErrorMessage)
}

func TestGenerate_CancellationStillFinalizes(t *testing.T) {
	p := newPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.svc.Generate(ctx, uuid.New(), &GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)

	record := p.repo.only(t)
	assert.Equal(t, history.StatusFailure, record.Status)
	assert.Equal(t, "request cancelled", record.ErrorMessage)
	assert.Len(t, p.ledger.commitCalls, 1)
}

func TestGenerate_ProjectContextFlowsIntoPrompt(t *testing.T) {
	p := newPipeline()
	p.contexts.files = []prompt.ContextFile{
		{Filename: "app.js", Content: "const a = 1", Size: 11},
	}
	projectID := uuid.New()

	resp, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{
		Prompt:    "explain this",
		Mode:      prompt.ModeExplain,
		ProjectID: &projectID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, p.contexts.calls)
	require.Len(t, resp.ContextFiles, 1)
	assert.Equal(t, "app.js", resp.ContextFiles[0].Filename)

	// The reserved estimate covers the file content.
	composed := prompt.Compose("explain this", prompt.ModeExplain, p.contexts.files)
	assert.Equal(t, []int{quota.EstimateTokens(composed)}, p.ledger.reserveCalls)
}

func TestGenerate_DefaultsToGenerateMode(t *testing.T) {
	p := newPipeline()

	resp, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeGenerate, resp.Mode)
}

func TestGenerate_NoDoubleFinalize(t *testing.T) {
	p := newPipeline()
	userID := uuid.New()

	_, err := p.svc.Generate(context.Background(), userID, &GenerateRequest{Prompt: "one"})
	require.NoError(t, err)

	record := p.repo.only(t)
	assert.Equal(t, history.StatusSuccess, record.Status)

	// A stale finalization attempt against the same record is a no-op.
	updated, err := p.repo.Complete(context.Background(), record.ID, &history.Interaction{Status: history.StatusFailure})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestGenerate_ReserveErrorMapsTo500(t *testing.T) {
	p := newPipeline()
	p.ledger.reserveErr = errors.New("database down")

	_, err := p.svc.Generate(context.Background(), uuid.New(), &GenerateRequest{Prompt: "p"})

	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}
