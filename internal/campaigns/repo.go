package campaigns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

// Repository manages persistence for campaigns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	FindByName(ctx context.Context, name string) (*models.Campaign, error)
	List(ctx context.Context, opts listQuery) ([]models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBlocks(ctx context.Context, campaignID uuid.UUID) (int64, error)
	DeleteDependents(ctx context.Context, campaignID uuid.UUID) error
}

type listQuery struct {
	limit      int
	cursor     *pagination.Cursor
	activeOnly bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a campaign repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	if err := r.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, err
	}
	return campaign, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var row models.Campaign
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.Campaign, error) {
	var row models.Campaign
	if err := r.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Campaign, error) {
	query := r.db.WithContext(ctx).Model(&models.Campaign{})

	if opts.activeOnly {
		query = query.Where("active = ?", true)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Save(campaign).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Campaign{}, "id = ?", id).Error
}

func (r *repository) CountBlocks(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Block{}).Where("campaign_id = ?", campaignID).Count(&count).Error
	return count, err
}

// DeleteDependents removes every ledger row and block belonging to the
// campaign. Callers must run it inside the same transaction that deletes the
// campaign row itself.
func (r *repository) DeleteDependents(ctx context.Context, campaignID uuid.UUID) error {
	blockIDs := r.db.Model(&models.Block{}).Select("id").Where("campaign_id = ?", campaignID)

	if err := r.db.WithContext(ctx).Where("block_id IN (?)", blockIDs).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("block_id IN (?)", blockIDs).Delete(&models.Return{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Delete(&models.Block{}).Error
}
