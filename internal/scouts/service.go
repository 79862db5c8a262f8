package scouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	pkgpagination "github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

// Service exposes scout CRUD semantics.
type Service interface {
	CreateScout(ctx context.Context, input CreateScoutInput) (*models.Scout, error)
	GetScout(ctx context.Context, id uuid.UUID) (*models.Scout, error)
	ListScouts(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateScout(ctx context.Context, id uuid.UUID, input UpdateScoutInput) (*models.Scout, error)
	DeleteScout(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

// CreateScoutInput holds the fields required to create a scout.
type CreateScoutInput struct {
	Name    string
	Email   *string
	Phone   *string
	Section *enums.Section
	Active  *bool
}

// UpdateScoutInput carries optional field updates; nil means unchanged.
type UpdateScoutInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Section *enums.Section
	Active  *bool
}

// ListParams holds scout listing inputs.
type ListParams struct {
	Limit      int
	Cursor     string
	ActiveOnly bool
	Section    string
}

// ListResult is a page of scouts plus the next cursor.
type ListResult struct {
	Items  []models.Scout
	Cursor string
}

// NewService builds a scout service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("scout repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateScout(ctx context.Context, input CreateScoutInput) (*models.Scout, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Section != nil && !input.Section.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section")
	}

	if _, err := s.repo.FindByNameInsensitive(ctx, name); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "scout name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout name")
	}

	scout := &models.Scout{
		Name:    name,
		Email:   input.Email,
		Phone:   input.Phone,
		Section: input.Section,
		Active:  true,
	}
	if input.Active != nil {
		scout.Active = *input.Active
	}

	created, err := s.repo.Create(ctx, scout)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_scouts_name_lower") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "scout name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create scout")
	}
	return created, nil
}

func (s *service) GetScout(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout")
	}
	return row, nil
}

func (s *service) ListScouts(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Section != "" {
		if _, err := enums.ParseSection(params.Section); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section filter")
		}
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		limit:      pkgpagination.LimitWithBuffer(params.Limit),
		activeOnly: params.ActiveOnly,
		section:    params.Section,
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scouts")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	return &ListResult{Items: rows, Cursor: nextCursor}, nil
}

func (s *service) UpdateScout(ctx context.Context, id uuid.UUID, input UpdateScoutInput) (*models.Scout, error) {
	row, err := s.GetScout(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		if !strings.EqualFold(name, row.Name) {
			if existing, err := s.repo.FindByNameInsensitive(ctx, name); err == nil && existing.ID != row.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "scout name already exists")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout name")
			}
		}
		row.Name = name
	}
	if input.Email != nil {
		row.Email = input.Email
	}
	if input.Phone != nil {
		row.Phone = input.Phone
	}
	if input.Section != nil {
		if !input.Section.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section")
		}
		row.Section = input.Section
	}
	if input.Active != nil {
		row.Active = *input.Active
	}

	if err := s.repo.Update(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "idx_scouts_name_lower") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "scout name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update scout")
	}
	return row, nil
}

// DeleteScout refuses to remove a scout that still has blocks assigned.
func (s *service) DeleteScout(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetScout(ctx, id); err != nil {
		return err
	}

	blocked, err := s.repo.CountBlocks(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count dependent blocks")
	}
	if blocked > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "scout is referenced by blocks").
			WithDetails(map[string]int64{"blocks": blocked})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete scout")
	}
	return nil
}
