package projects

import (
	"context"

	"github.com/google/uuid"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/quota"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
)

// ContextForUser loads a project's files as generation context, bounded
// by tokenBudget estimated tokens. Files are walked in filename order;
// one that does not fit the remaining budget is skipped and the walk
// continues, so a single oversized file cannot starve the rest.
//
// Non-owners may only use public projects. Visibility violations map to
// 403 rather than 404: the caller referenced the project explicitly, so
// hiding its existence buys nothing.
func (s *Service) ContextForUser(ctx context.Context, projectID, userID uuid.UUID, tokenBudget int) ([]prompt.ContextFile, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, api.ErrProjectNotFound
	}
	if project.OwnerUserID != userID && project.Visibility != VisibilityPublic {
		return nil, api.ErrOwnershipViolation
	}

	files, err := s.repo.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}

	selected := []prompt.ContextFile{}
	remaining := tokenBudget
	for _, f := range files {
		cost := quota.EstimateTokens(f.Content)
		if cost > remaining {
			continue
		}
		selected = append(selected, prompt.ContextFile{
			Filename: f.Filename,
			Content:  f.Content,
			Size:     f.Size,
		})
		remaining -= cost
	}
	return selected, nil
}
