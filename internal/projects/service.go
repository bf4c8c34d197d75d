package projects

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *CreateProjectRequest) (*Project, error) {
	now := s.now().UTC()

	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityPrivate
	}

	p := &Project{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Visibility:  visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]*Project, int64, error) {
	offset := (params.Page - 1) * params.PageSize

	projects, err := s.repo.ListByOwner(ctx, ownerID, params.PageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return projects, count, nil
}

func (s *Service) Update(ctx context.Context, p *Project, req *UpdateProjectRequest) (*Project, error) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Language != nil {
		p.Language = *req.Language
	}
	if req.Visibility != nil {
		p.Visibility = *req.Visibility
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// PutFile creates or replaces a file by (project, filename).
func (s *Service) PutFile(ctx context.Context, projectID uuid.UUID, req *PutFileRequest) (*File, error) {
	f := &File{
		ID:        uuid.New(),
		ProjectID: projectID,
		Filename:  req.Filename,
		Content:   req.Content,
		Size:      len(req.Content),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.UpsertFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) ListFiles(ctx context.Context, projectID uuid.UUID) ([]*File, error) {
	return s.repo.ListFiles(ctx, projectID)
}

func (s *Service) DeleteFile(ctx context.Context, projectID uuid.UUID, filename string) (bool, error) {
	return s.repo.DeleteFile(ctx, projectID, filename)
}
