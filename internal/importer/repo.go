package importer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
)

// Repository covers the campaign, scout and block access an import or
// export needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	FindScoutByName(ctx context.Context, name string) (*models.Scout, error)
	FindScoutByID(ctx context.Context, id uuid.UUID) (*models.Scout, error)
	CreateScout(ctx context.Context, scout *models.Scout) (*models.Scout, error)
	CreateBlocks(ctx context.Context, rows []models.Block) error
	CountOverlapping(ctx context.Context, campaignID uuid.UUID, start, end int) (int64, error)
	ListBlocksByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an import repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var row models.Campaign
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindScoutByName matches case-insensitively, same rule as the scouts
// unique index.
func (r *repository) FindScoutByName(ctx context.Context, name string) (*models.Scout, error) {
	var row models.Scout
	if err := r.db.WithContext(ctx).
		Where("lower(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindScoutByID(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	var row models.Scout
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreateScout(ctx context.Context, scout *models.Scout) (*models.Scout, error) {
	if err := r.db.WithContext(ctx).Create(scout).Error; err != nil {
		return nil, err
	}
	return scout, nil
}

func (r *repository) CreateBlocks(ctx context.Context, rows []models.Block) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) CountOverlapping(ctx context.Context, campaignID uuid.UUID, start, end int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("campaign_id = ?", campaignID).
		Where("start_number <= ? AND end_number >= ?", end, start).
		Count(&count).Error
	return count, err
}

func (r *repository) ListBlocksByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error) {
	var rows []models.Block
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("start_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
