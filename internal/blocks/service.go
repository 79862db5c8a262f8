package blocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	pkgpagination "github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type campaignsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

type scoutsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Scout, error)
}

// Service exposes block CRUD, assignment, batch generation, and splitting.
type Service interface {
	CreateBlock(ctx context.Context, input CreateBlockInput) (*models.Block, error)
	GetBlock(ctx context.Context, id uuid.UUID) (*models.Block, error)
	ListBlocks(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateBlock(ctx context.Context, id uuid.UUID, input UpdateBlockInput) (*models.Block, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	AssignScout(ctx context.Context, blockID, scoutID uuid.UUID) (*models.Block, error)
	UnassignScout(ctx context.Context, blockID uuid.UUID) (*models.Block, error)
	GenerateBatch(ctx context.Context, input BatchInput) ([]models.Block, error)
	SplitBlock(ctx context.Context, blockID uuid.UUID, scoutIDs []uuid.UUID) (*SplitResult, error)
}

type service struct {
	repo      Repository
	campaigns campaignsRepository
	scouts    scoutsRepository
	tx        txRunner
}

// CreateBlockInput holds the fields required to create a single block.
type CreateBlockInput struct {
	CampaignID  uuid.UUID
	Name        string
	StartNumber int
	EndNumber   int
	UnitPrice   decimal.Decimal
	BlockPrice  *decimal.Decimal
	Section     *enums.Section
	Notes       *string
}

// UpdateBlockInput carries optional field updates; nil means unchanged.
type UpdateBlockInput struct {
	Name       *string
	UnitPrice  *decimal.Decimal
	BlockPrice *decimal.Decimal
	Section    *enums.Section
	Notes      *string
}

// ListParams holds block listing inputs.
type ListParams struct {
	Limit          int
	Cursor         string
	CampaignID     uuid.UUID
	ScoutID        uuid.UUID
	UnassignedOnly bool
}

// ListResult is a page of blocks plus the next cursor.
type ListResult struct {
	Items  []models.Block
	Cursor string
}

// NewService builds a block service backed by the provided repositories.
func NewService(repo Repository, campaigns campaignsRepository, scouts scoutsRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("block repository required")
	}
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository required")
	}
	if scouts == nil {
		return nil, fmt.Errorf("scout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, campaigns: campaigns, scouts: scouts, tx: tx}, nil
}

func (s *service) CreateBlock(ctx context.Context, input CreateBlockInput) (*models.Block, error) {
	if input.CampaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign_id is required")
	}
	if input.StartNumber < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start_number must be at least 1")
	}
	if input.EndNumber < input.StartNumber {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end_number must not be before start_number")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	if input.BlockPrice != nil && !input.BlockPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_price must be positive")
	}
	if input.Section != nil && !input.Section.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section")
	}

	if _, err := s.campaigns.FindByID(ctx, input.CampaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign")
	}

	overlaps, err := s.repo.CountOverlapping(ctx, input.CampaignID, input.StartNumber, input.EndNumber, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check range overlap")
	}
	if overlaps > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "range overlaps an existing block").
			WithDetails(map[string]int64{"overlapping_blocks": overlaps})
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = fmt.Sprintf("%d-%d", input.StartNumber, input.EndNumber)
	}

	block := &models.Block{
		CampaignID:  input.CampaignID,
		Name:        name,
		StartNumber: input.StartNumber,
		EndNumber:   input.EndNumber,
		UnitPrice:   input.UnitPrice,
		BlockPrice:  input.BlockPrice,
		Section:     input.Section,
		Notes:       input.Notes,
	}

	created, err := s.repo.Create(ctx, block)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create block")
	}
	return created, nil
}

func (s *service) GetBlock(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "block not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup block")
	}
	return row, nil
}

func (s *service) ListBlocks(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		limit:          pkgpagination.LimitWithBuffer(params.Limit),
		campaignID:     params.CampaignID,
		scoutID:        params.ScoutID,
		unassignedOnly: params.UnassignedOnly,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list blocks")
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

func (s *service) UpdateBlock(ctx context.Context, id uuid.UUID, input UpdateBlockInput) (*models.Block, error) {
	row, err := s.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		row.Name = name
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
		}
		row.UnitPrice = *input.UnitPrice
	}
	if input.BlockPrice != nil {
		if !input.BlockPrice.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_price must be positive")
		}
		row.BlockPrice = input.BlockPrice
	}
	if input.Section != nil {
		if !input.Section.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section")
		}
		row.Section = input.Section
	}
	if input.Notes != nil {
		row.Notes = input.Notes
	}

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update block")
	}
	return row, nil
}

// DeleteBlock refuses to remove a block with ledger history; payments and
// returns must be removed explicitly first.
func (s *service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetBlock(ctx, id); err != nil {
		return err
	}

	counts, err := s.repo.CountLedgerRows(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count ledger rows")
	}
	if counts.Total() > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "block has ledger history").
			WithDetails(map[string]int64{"payments": counts.Payments, "returns": counts.Returns})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete block")
	}
	return nil
}

// AssignScout sets the scout and assignment timestamp together.
func (s *service) AssignScout(ctx context.Context, blockID, scoutID uuid.UUID) (*models.Block, error) {
	if scoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout_id is required")
	}

	row, err := s.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}

	if _, err := s.scouts.FindByID(ctx, scoutID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout")
	}

	now := time.Now().UTC()
	row.ScoutID = &scoutID
	row.AssignedAt = &now

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign block")
	}
	return row, nil
}

// UnassignScout clears the scout and assignment timestamp together. Blocks
// with ledger history stay assigned until the history is removed.
func (s *service) UnassignScout(ctx context.Context, blockID uuid.UUID) (*models.Block, error) {
	row, err := s.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if row.ScoutID == nil {
		return row, nil
	}

	counts, err := s.repo.CountLedgerRows(ctx, blockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count ledger rows")
	}
	if counts.Total() > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "block has ledger history").
			WithDetails(map[string]int64{"payments": counts.Payments, "returns": counts.Returns})
	}

	row.ScoutID = nil
	row.AssignedAt = nil

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unassign block")
	}
	return row, nil
}
