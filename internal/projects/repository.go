package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Project, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id uuid.UUID) error

	UpsertFile(ctx context.Context, f *File) error
	ListFiles(ctx context.Context, projectID uuid.UUID) ([]*File, error)
	DeleteFile(ctx context.Context, projectID uuid.UUID, filename string) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (id, owner_user_id, name, description, language, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.OwnerUserID, p.Name, p.Description, p.Language, p.Visibility,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `
		SELECT id, owner_user_id, name, description, language, visibility, created_at, updated_at
		FROM projects WHERE id = $1`

	p := &Project{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.OwnerUserID, &p.Name, &p.Description, &p.Language,
		&p.Visibility, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Project, error) {
	query := `
		SELECT id, owner_user_id, name, description, language, visibility, created_at, updated_at
		FROM projects
		WHERE owner_user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.Description,
			&p.Language, &p.Visibility, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

func (r *postgresRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_user_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting projects: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects
		SET name = $2, description = $3, language = $4, visibility = $5, updated_at = $6
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Language, p.Visibility, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

// Delete removes the project; files go with it via ON DELETE CASCADE.
func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpsertFile(ctx context.Context, f *File) error {
	query := `
		INSERT INTO project_files (id, project_id, filename, content, size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, filename)
		DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.ProjectID, f.Filename, f.Content, f.Size, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting project file: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListFiles(ctx context.Context, projectID uuid.UUID) ([]*File, error) {
	query := `
		SELECT id, project_id, filename, content, size, updated_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY filename ASC`

	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}
	defer rows.Close()

	files := []*File{}
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.Content, &f.Size, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file rows: %w", err)
	}
	return files, nil
}

func (r *postgresRepository) DeleteFile(ctx context.Context, projectID uuid.UUID, filename string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM project_files WHERE project_id = $1 AND filename = $2`, projectID, filename)
	if err != nil {
		return false, fmt.Errorf("deleting project file: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
