package projects

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls whether non-owners can use a project as
// generation context. Private projects are invisible to other users.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Project struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// File is one source file stored under a project. Size is kept in the
// row so context selection can budget without loading content.
type File struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=1000"`
	Language    string `json:"language" validate:"max=50"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=private public"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Language    *string `json:"language" validate:"omitempty,max=50"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=private public"`
}

type PutFileRequest struct {
	Filename string `json:"filename" validate:"required,min=1,max=255"`
	Content  string `json:"content" validate:"max=1048576"`
}

type ListParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
