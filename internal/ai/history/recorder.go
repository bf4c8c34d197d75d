package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
)

// Recorder owns the interaction lifecycle: a record is created pending
// at dispatch time and finalized exactly once with a terminal status.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, now: time.Now}
}

// Begin creates the pending record for an admitted request.
func (r *Recorder) Begin(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, mode, userPrompt string, tokensInput int, files []prompt.ContextFile) (*Interaction, error) {
	if files == nil {
		files = []prompt.ContextFile{}
	}
	in := &Interaction{
		ID:           uuid.New(),
		UserID:       userID,
		ProjectID:    projectID,
		Mode:         mode,
		Prompt:       userPrompt,
		Status:       StatusPending,
		TokensInput:  tokensInput,
		ContextFiles: files,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.repo.Create(ctx, in); err != nil {
		return nil, fmt.Errorf("recording interaction: %w", err)
	}
	return in, nil
}

// CompleteSuccess finalizes a pending record with the generated text.
// A record that is no longer pending is left untouched and logged, not
// errored: finalization races are benign as long as exactly one side
// wins.
func (r *Recorder) CompleteSuccess(ctx context.Context, in *Interaction, responseText, model, strategy string, tokensOutput int, elapsed time.Duration) {
	in.Status = StatusSuccess
	in.Response = responseText
	in.Model = model
	in.Strategy = strategy
	in.TokensOutput = tokensOutput
	in.TokensTotal = in.TokensInput + tokensOutput
	in.ResponseTimeMs = elapsed.Milliseconds()
	r.finalize(ctx, in)
}

// CompleteFailure finalizes a pending record with an error message and
// no response text.
func (r *Recorder) CompleteFailure(ctx context.Context, in *Interaction, errMsg string, elapsed time.Duration) {
	in.Status = StatusFailure
	in.ErrorMessage = errMsg
	in.TokensTotal = in.TokensInput
	in.ResponseTimeMs = elapsed.Milliseconds()
	r.finalize(ctx, in)
}

func (r *Recorder) finalize(ctx context.Context, in *Interaction) {
	updated, err := r.repo.Complete(ctx, in.ID, in)
	if err != nil {
		r.logger.Error("failed to finalize interaction",
			slog.String("interaction_id", in.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	if !updated {
		r.logger.Warn("interaction already finalized",
			slog.String("interaction_id", in.ID.String()))
	}
}

// ListForUser returns summaries newest first, without response bodies.
func (r *Recorder) ListForUser(ctx context.Context, userID uuid.UUID, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return r.repo.ListByUser(ctx, userID, filter, limit, offset)
}

// GetForUser returns a full interaction. Records belonging to another
// user are reported as not found rather than forbidden, so the endpoint
// does not leak which IDs exist.
func (r *Recorder) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Interaction, error) {
	in, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in == nil || in.UserID != userID {
		return nil, api.ErrInteractionNotFound
	}
	return in, nil
}

// DeleteForUser removes a single interaction owned by the user.
func (r *Recorder) DeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	deleted, err := r.repo.DeleteByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return api.ErrInteractionNotFound
	}
	return nil
}

// StatsForUser aggregates the user's history over the last sinceDays
// days, or all time when sinceDays is zero.
func (r *Recorder) StatsForUser(ctx context.Context, userID uuid.UUID, sinceDays int) (*Stats, error) {
	return r.repo.StatsByUser(ctx, userID, sinceDays)
}
