package blocks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

// Repository manages persistence for raffle blocks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, block *models.Block) (*models.Block, error)
	CreateBatch(ctx context.Context, blocks []models.Block) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Block, error)
	List(ctx context.Context, opts listQuery) ([]models.Block, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error)
	ListByScout(ctx context.Context, scoutID uuid.UUID) ([]models.Block, error)
	CountOverlapping(ctx context.Context, campaignID uuid.UUID, start, end int, excludeID uuid.UUID) (int64, error)
	Update(ctx context.Context, block *models.Block) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountLedgerRows(ctx context.Context, blockID uuid.UUID) (LedgerRowCounts, error)
}

// LedgerRowCounts carries the number of ledger rows referencing a block.
type LedgerRowCounts struct {
	Payments int64
	Returns  int64
}

// Total reports all rows across both ledger tables.
func (c LedgerRowCounts) Total() int64 {
	return c.Payments + c.Returns
}

type listQuery struct {
	limit          int
	cursor         *pagination.Cursor
	campaignID     uuid.UUID
	scoutID        uuid.UUID
	unassignedOnly bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a block repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, block *models.Block) (*models.Block, error) {
	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		return nil, err
	}
	return block, nil
}

func (r *repository) CreateBatch(ctx context.Context, blocks []models.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&blocks).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	var row models.Block
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Block, error) {
	query := r.db.WithContext(ctx).Model(&models.Block{})

	if opts.campaignID != uuid.Nil {
		query = query.Where("campaign_id = ?", opts.campaignID)
	}
	if opts.scoutID != uuid.Nil {
		query = query.Where("scout_id = ?", opts.scoutID)
	}
	if opts.unassignedOnly {
		query = query.Where("scout_id IS NULL")
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Block
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error) {
	var rows []models.Block
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("start_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByScout(ctx context.Context, scoutID uuid.UUID) ([]models.Block, error) {
	var rows []models.Block
	if err := r.db.WithContext(ctx).
		Where("scout_id = ?", scoutID).
		Order("start_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountOverlapping counts campaign blocks whose inclusive range intersects
// [start, end], optionally excluding one block id.
func (r *repository) CountOverlapping(ctx context.Context, campaignID uuid.UUID, start, end int, excludeID uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("campaign_id = ?", campaignID).
		Where("start_number <= ? AND end_number >= ?", end, start)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *repository) Update(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).Save(block).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Block{}, "id = ?", id).Error
}

func (r *repository) CountLedgerRows(ctx context.Context, blockID uuid.UUID) (LedgerRowCounts, error) {
	var counts LedgerRowCounts
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("block_id = ?", blockID).Count(&counts.Payments).Error; err != nil {
		return counts, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Return{}).Where("block_id = ?", blockID).Count(&counts.Returns).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
