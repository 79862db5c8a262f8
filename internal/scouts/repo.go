package scouts

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/pagination"
)

// Repository manages persistence for scouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, scout *models.Scout) (*models.Scout, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Scout, error)
	FindByNameInsensitive(ctx context.Context, name string) (*models.Scout, error)
	List(ctx context.Context, opts listQuery) ([]models.Scout, error)
	Update(ctx context.Context, scout *models.Scout) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBlocks(ctx context.Context, scoutID uuid.UUID) (int64, error)
}

type listQuery struct {
	limit      int
	cursor     *pagination.Cursor
	activeOnly bool
	section    string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a scout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, scout *models.Scout) (*models.Scout, error) {
	if err := r.db.WithContext(ctx).Create(scout).Error; err != nil {
		return nil, err
	}
	return scout, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	var row models.Scout
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByNameInsensitive matches on lower(name), mirroring the unique index.
func (r *repository) FindByNameInsensitive(ctx context.Context, name string) (*models.Scout, error) {
	var row models.Scout
	if err := r.db.WithContext(ctx).First(&row, "lower(name) = ?", strings.ToLower(name)).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, opts listQuery) ([]models.Scout, error) {
	query := r.db.WithContext(ctx).Model(&models.Scout{})

	if opts.activeOnly {
		query = query.Where("active = ?", true)
	}
	if opts.section != "" {
		query = query.Where("section = ?", opts.section)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Scout
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, scout *models.Scout) error {
	return r.db.WithContext(ctx).Save(scout).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Scout{}, "id = ?", id).Error
}

func (r *repository) CountBlocks(ctx context.Context, scoutID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Block{}).Where("scout_id = ?", scoutID).Count(&count).Error
	return count, err
}
