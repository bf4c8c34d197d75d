package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
)

type Repository interface {
	Create(ctx context.Context, in *Interaction) error
	// Complete moves a pending interaction to a terminal status. Returns
	// false when the interaction was not pending, so a record can never
	// be finalized twice.
	Complete(ctx context.Context, id uuid.UUID, in *Interaction) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Interaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter, limit, offset int) ([]Summary, int, error)
	DeleteByID(ctx context.Context, id, userID uuid.UUID) (bool, error)
	StatsByUser(ctx context.Context, userID uuid.UUID, sinceDays int) (*Stats, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, in *Interaction) error {
	contextFiles, err := json.Marshal(in.ContextFiles)
	if err != nil {
		return fmt.Errorf("marshaling context files: %w", err)
	}

	query := `
		INSERT INTO ai_interactions
			(id, user_id, project_id, mode, prompt, status, tokens_input, context_files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.pool.Exec(ctx, query,
		in.ID, in.UserID, in.ProjectID, in.Mode, in.Prompt, in.Status,
		in.TokensInput, contextFiles, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting interaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) Complete(ctx context.Context, id uuid.UUID, in *Interaction) (bool, error) {
	query := `
		UPDATE ai_interactions
		SET status = $2,
		    response = $3,
		    model = $4,
		    strategy = $5,
		    error_message = $6,
		    tokens_output = $7,
		    tokens_total = $8,
		    response_time_ms = $9
		WHERE id = $1 AND status = $10`

	tag, err := r.pool.Exec(ctx, query,
		id, in.Status, in.Response, in.Model, in.Strategy, in.ErrorMessage,
		in.TokensOutput, in.TokensTotal, in.ResponseTimeMs, StatusPending)
	if err != nil {
		return false, fmt.Errorf("completing interaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Interaction, error) {
	query := `
		SELECT id, user_id, project_id, mode, prompt, response, model, strategy,
		       status, error_message, tokens_input, tokens_output, tokens_total,
		       response_time_ms, context_files, created_at
		FROM ai_interactions WHERE id = $1`

	in := &Interaction{}
	var contextFiles []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&in.ID, &in.UserID, &in.ProjectID, &in.Mode, &in.Prompt, &in.Response,
		&in.Model, &in.Strategy, &in.Status, &in.ErrorMessage, &in.TokensInput,
		&in.TokensOutput, &in.TokensTotal, &in.ResponseTimeMs, &contextFiles, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying interaction: %w", err)
	}

	if len(contextFiles) > 0 {
		if err := json.Unmarshal(contextFiles, &in.ContextFiles); err != nil {
			return nil, fmt.Errorf("unmarshaling context files: %w", err)
		}
	}
	if in.ContextFiles == nil {
		in.ContextFiles = []prompt.ContextFile{}
	}
	return in, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter, limit, offset int) ([]Summary, int, error) {
	where := "WHERE user_id = $1"
	args := []any{userID}
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		where += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if filter.Mode != "" {
		args = append(args, filter.Mode)
		where += fmt.Sprintf(" AND mode = $%d", len(args))
	}
	if filter.SinceDays > 0 {
		args = append(args, filter.SinceDays)
		where += fmt.Sprintf(" AND created_at >= NOW() - make_interval(days => $%d)", len(args))
	}

	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM ai_interactions "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting interactions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, project_id, mode, LEFT(prompt, 123), model, strategy, status,
		       tokens_total, response_time_ms, created_at
		FROM ai_interactions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		var rawPrompt string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Mode, &rawPrompt, &s.Model,
			&s.Strategy, &s.Status, &s.TokensTotal, &s.ResponseTimeMs, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning interaction row: %w", err)
		}
		s.PromptPreview = PromptPreview(rawPrompt)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating interaction rows: %w", err)
	}
	return summaries, total, nil
}

func (r *postgresRepository) DeleteByID(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM ai_interactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting interaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) StatsByUser(ctx context.Context, userID uuid.UUID, sinceDays int) (*Stats, error) {
	stats := &Stats{
		ByMode:     map[string]int{},
		ByStrategy: map[string]int{},
	}

	where := "WHERE user_id = $1"
	args := []any{userID}
	if sinceDays > 0 {
		args = append(args, sinceDays)
		where += fmt.Sprintf(" AND created_at >= NOW() - make_interval(days => $%d)", len(args))
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status = 'failure'),
		       COALESCE(SUM(tokens_total), 0),
		       COALESCE(AVG(response_time_ms), 0)
		FROM ai_interactions ` + where

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalInteractions, &stats.SuccessCount, &stats.FailureCount,
		&stats.TotalTokens, &stats.AvgResponseTimeMs)
	if err != nil {
		return nil, fmt.Errorf("aggregating interaction stats: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT mode, COUNT(*) FROM ai_interactions "+where+" GROUP BY mode", args...)
	if err != nil {
		return nil, fmt.Errorf("grouping interactions by mode: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("scanning mode group: %w", err)
		}
		stats.ByMode[mode] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mode groups: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		"SELECT strategy, COUNT(*) FROM ai_interactions "+where+" AND strategy <> '' GROUP BY strategy", args...)
	if err != nil {
		return nil, fmt.Errorf("grouping interactions by strategy: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var strategy string
		var count int
		if err := rows.Scan(&strategy, &count); err != nil {
			return nil, fmt.Errorf("scanning strategy group: %w", err)
		}
		stats.ByStrategy[strategy] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating strategy groups: %w", err)
	}
	return stats, nil
}
