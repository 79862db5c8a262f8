package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	pkgpagination "github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes campaign CRUD semantics.
type Service interface {
	CreateCampaign(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateCampaign(ctx context.Context, id uuid.UUID, input UpdateCampaignInput) (*models.Campaign, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// CreateCampaignInput holds the fields required to create a campaign.
type CreateCampaignInput struct {
	Name        string
	Description *string
	StartDate   time.Time
	EndDate     time.Time
	Active      bool
}

// UpdateCampaignInput carries optional field updates; nil means unchanged.
type UpdateCampaignInput struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Active      *bool
}

// ListParams holds campaign listing inputs.
type ListParams struct {
	Limit      int
	Cursor     string
	ActiveOnly bool
}

// ListResult is a page of campaigns plus the next cursor.
type ListResult struct {
	Items  []models.Campaign
	Cursor string
}

// NewService builds a campaign service backed by the provided repository.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("campaign repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*models.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start_date and end_date are required")
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date")
	}

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign name")
	}

	campaign := &models.Campaign{
		Name:        name,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Active:      input.Active,
	}

	created, err := s.repo.Create(ctx, campaign)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}
	return created, nil
}

func (s *service) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign")
	}
	return row, nil
}

func (s *service) ListCampaigns(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		limit:      pkgpagination.LimitWithBuffer(params.Limit),
		activeOnly: params.ActiveOnly,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaigns")
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

func (s *service) UpdateCampaign(ctx context.Context, id uuid.UUID, input UpdateCampaignInput) (*models.Campaign, error) {
	row, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		if name != row.Name {
			if existing, err := s.repo.FindByName(ctx, name); err == nil && existing.ID != row.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign name already exists")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign name")
			}
		}
		row.Name = name
	}
	if input.Description != nil {
		row.Description = input.Description
	}
	if input.StartDate != nil {
		row.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		row.EndDate = *input.EndDate
	}
	if row.EndDate.Before(row.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date")
	}
	if input.Active != nil {
		row.Active = *input.Active
	}

	if err := s.repo.Update(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "campaign name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update campaign")
	}
	return row, nil
}

// DeleteCampaign removes the campaign together with its blocks and their
// ledger rows in one transaction.
func (s *service) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteDependents(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete campaign")
	}
	return nil
}
