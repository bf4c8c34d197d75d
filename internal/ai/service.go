// Package ai wires admission, prompt composition, generation, token
// accounting, and interaction recording into one request pipeline.
package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/history"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/provider"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/quota"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
	"github.com/Lideeyah/DevAssist-sub000/internal/config"
	"github.com/Lideeyah/DevAssist-sub000/internal/events"
	"github.com/Lideeyah/DevAssist-sub000/internal/metrics"
)

// TokenLedger is the quota surface the pipeline needs.
type TokenLedger interface {
	Reserve(ctx context.Context, userID uuid.UUID, estimatedTokens int) (*quota.Usage, error)
	Commit(ctx context.Context, userID uuid.UUID, actualTokens int) error
	Usage(ctx context.Context, userID uuid.UUID) (*quota.Usage, error)
}

// ContextProvider loads bounded project file context for a user.
type ContextProvider interface {
	ContextForUser(ctx context.Context, projectID, userID uuid.UUID, tokenBudget int) ([]prompt.ContextFile, error)
}

// Generator produces text for a composed request. It cannot fail: the
// chain behind it ends in a generator that always succeeds.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) *provider.Result
}

// Publisher emits terminal generation events. Nil-safe via noopPublisher.
type Publisher interface {
	PublishGenerationEvent(ctx context.Context, event events.GenerationEvent) error
	PublishAuditEvent(ctx context.Context, event events.AuditEvent) error
}

type GenerateRequest struct {
	Prompt    string     `json:"prompt" validate:"required,min=1"`
	Mode      string     `json:"mode" validate:"omitempty,oneof=generate explain"`
	ProjectID *uuid.UUID `json:"project_id"`
}

type GenerateResponse struct {
	InteractionID  uuid.UUID            `json:"interaction_id"`
	Response       string               `json:"response"`
	Mode           string               `json:"mode"`
	Model          string               `json:"model,omitempty"`
	Strategy       string               `json:"strategy"`
	TokensInput    int                  `json:"tokens_input"`
	TokensOutput   int                  `json:"tokens_output"`
	TokensTotal    int                  `json:"tokens_total"`
	ResponseTimeMs int64                `json:"response_time_ms"`
	ContextFiles   []prompt.ContextFile `json:"context_files"`
	Usage          *quota.Usage         `json:"usage,omitempty"`
}

// Service runs the generation pipeline. Stage order is load-bearing:
// admission happens before the pending record is created, so rejected
// requests leave no history and consume no tokens; accounting and record
// finalization happen after generation on a detached context, so a
// client disconnect cannot leave a pending record or uncounted tokens.
type Service struct {
	ledger         TokenLedger
	contexts       ContextProvider
	generator      Generator
	recorder       *history.Recorder
	publisher      Publisher
	contextBudget  int
	maxPromptChars int
	logger         *slog.Logger
}

func NewService(ledger TokenLedger, contexts ContextProvider, generator Generator, recorder *history.Recorder, publisher Publisher, quotaCfg config.QuotaConfig, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Service{
		ledger:         ledger,
		contexts:       contexts,
		generator:      generator,
		recorder:       recorder,
		publisher:      publisher,
		contextBudget:  quotaCfg.ContextTokenBudget,
		maxPromptChars: quotaCfg.MaxPromptChars,
		logger:         logger,
	}
}

// Generate runs one request through the full pipeline.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req *GenerateRequest) (*GenerateResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = prompt.ModeGenerate
	}

	if s.maxPromptChars > 0 && len(req.Prompt) > s.maxPromptChars {
		return nil, api.NewBadRequestError("prompt exceeds maximum length")
	}

	files := []prompt.ContextFile{}
	if req.ProjectID != nil {
		var err error
		files, err = s.contexts.ContextForUser(ctx, *req.ProjectID, userID, s.contextBudget)
		if err != nil {
			return nil, err
		}
	}

	composed := prompt.Compose(req.Prompt, mode, files)
	estimated := quota.EstimateTokens(composed)

	usage, err := s.admit(ctx, userID, estimated)
	if err != nil {
		return nil, err
	}

	record, err := s.recorder.Begin(ctx, userID, req.ProjectID, mode, req.Prompt, estimated, files)
	if err != nil {
		return nil, api.ErrInternalServer
	}

	start := time.Now()
	result := s.generator.Generate(ctx, provider.Request{
		Composed:   composed,
		UserPrompt: req.Prompt,
		Context:    prompt.FileContext(files),
		Mode:       mode,
	})
	elapsed := time.Since(start)

	// Accounting and recording survive client disconnects: the work was
	// done and the tokens were spent whether or not anyone is listening.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if result == nil || result.Text == "" {
		s.finishFailure(finishCtx, userID, record, "generation produced no output", estimated, elapsed)
		return nil, api.ErrGenerationFailed
	}

	if ctx.Err() != nil {
		s.finishFailure(finishCtx, userID, record, "request cancelled", estimated, elapsed)
		return nil, ctx.Err()
	}

	tokensOutput := quota.EstimateTokens(result.Text)
	total := estimated + tokensOutput

	if err := s.ledger.Commit(finishCtx, userID, total); err != nil {
		// The response is still delivered; the missed increment only
		// under-counts today's bucket.
		s.logger.Error("committing token usage",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
	metrics.TokensConsumedTotal.WithLabelValues("input").Add(float64(estimated))
	metrics.TokensConsumedTotal.WithLabelValues("output").Add(float64(tokensOutput))

	s.recorder.CompleteSuccess(finishCtx, record, result.Text, result.Model, result.Strategy, tokensOutput, elapsed)

	metrics.GenerationsTotal.WithLabelValues(result.Strategy, mode, history.StatusSuccess).Inc()
	metrics.GenerationDuration.WithLabelValues(result.Strategy).Observe(elapsed.Seconds())

	s.announce(finishCtx, record, result.Strategy, result.Model, history.StatusSuccess, total, elapsed)

	usage.TokensUsed += total
	usage.Remaining -= total
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}

	return &GenerateResponse{
		InteractionID:  record.ID,
		Response:       result.Text,
		Mode:           mode,
		Model:          result.Model,
		Strategy:       result.Strategy,
		TokensInput:    estimated,
		TokensOutput:   tokensOutput,
		TokensTotal:    total,
		ResponseTimeMs: elapsed.Milliseconds(),
		ContextFiles:   files,
		Usage:          usage,
	}, nil
}

// admit runs the quota pre-check and maps rejections to 429 responses
// carrying the budget details.
func (s *Service) admit(ctx context.Context, userID uuid.UUID, estimated int) (*quota.Usage, error) {
	usage, err := s.ledger.Reserve(ctx, userID, estimated)
	if err == nil {
		return usage, nil
	}

	switch e := err.(type) {
	case *quota.ExceededError:
		metrics.QuotaRejectionsTotal.WithLabelValues("exceeded").Inc()
		return nil, api.NewQuotaError(e.Error(), quotaDetails(&e.Usage, estimated))
	case *quota.WouldExceedError:
		metrics.QuotaRejectionsTotal.WithLabelValues("would_exceed").Inc()
		return nil, api.NewQuotaError(e.Error(), quotaDetails(&e.Usage, estimated))
	default:
		s.logger.Error("quota admission check failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, api.ErrInternalServer
	}
}

func quotaDetails(usage *quota.Usage, estimated int) map[string]any {
	return map[string]any{
		"limit":            usage.Limit,
		"used":             usage.TokensUsed,
		"remaining":        usage.Remaining,
		"estimated_tokens": estimated,
		"resets_at":        usage.ResetsAt,
	}
}

func (s *Service) finishFailure(ctx context.Context, userID uuid.UUID, record *history.Interaction, reason string, estimated int, elapsed time.Duration) {
	if err := s.ledger.Commit(ctx, userID, estimated); err != nil {
		s.logger.Error("committing token usage for failed generation",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
	metrics.TokensConsumedTotal.WithLabelValues("input").Add(float64(estimated))

	s.recorder.CompleteFailure(ctx, record, reason, elapsed)
	metrics.GenerationsTotal.WithLabelValues("none", record.Mode, history.StatusFailure).Inc()

	s.announce(ctx, record, "", "", history.StatusFailure, estimated, elapsed)
}

func (s *Service) announce(ctx context.Context, record *history.Interaction, strategy, model, status string, tokensTotal int, elapsed time.Duration) {
	now := time.Now().UTC()

	if err := s.publisher.PublishGenerationEvent(ctx, events.GenerationEvent{
		InteractionID: record.ID,
		UserID:        record.UserID,
		Mode:          record.Mode,
		Strategy:      strategy,
		Model:         model,
		Status:        status,
		TokensTotal:   tokensTotal,
		DurationMs:    elapsed.Milliseconds(),
		Timestamp:     now,
	}); err != nil {
		s.logger.Warn("publishing generation event", slog.String("error", err.Error()))
	}

	if err := s.publisher.PublishAuditEvent(ctx, events.AuditEvent{
		UserID:       record.UserID,
		EventType:    "generation_" + status,
		Severity:     severityFor(status),
		ResourceType: "interaction",
		ResourceID:   record.ID.String(),
		Details:      "generation finished with strategy " + orUnknown(strategy),
		Timestamp:    now,
	}); err != nil {
		s.logger.Warn("publishing audit event", slog.String("error", err.Error()))
	}
}

func severityFor(status string) string {
	if status == history.StatusFailure {
		return "warn"
	}
	return "info"
}

func orUnknown(strategy string) string {
	if strategy == "" {
		return "none"
	}
	return strategy
}

// UsageForUser exposes the current quota snapshot.
func (s *Service) UsageForUser(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	return s.ledger.Usage(ctx, userID)
}

type noopPublisher struct{}

func (noopPublisher) PublishGenerationEvent(context.Context, events.GenerationEvent) error {
	return nil
}

func (noopPublisher) PublishAuditEvent(context.Context, events.AuditEvent) error {
	return nil
}
