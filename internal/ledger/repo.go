package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
)

// BlockTotals carries the cumulative ledger sums for one block.
type BlockTotals struct {
	AmountPaid      decimal.Decimal
	TicketsReported int
	StubsDelivered  int
	TicketsReturned int
}

// Repository manages persistence for payments and returns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBlock(ctx context.Context, id uuid.UUID) (*models.Block, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPaymentsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, id uuid.UUID) error
	CreateReturn(ctx context.Context, ret *models.Return) error
	FindReturnByID(ctx context.Context, id uuid.UUID) (*models.Return, error)
	ListReturnsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Return, error)
	DeleteReturn(ctx context.Context, id uuid.UUID) error
	TotalsByBlock(ctx context.Context, blockID uuid.UUID, excludePaymentID uuid.UUID) (BlockTotals, error)
	TotalsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]BlockTotals, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBlock(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	var row models.Block
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListPaymentsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("block_id = ?", blockID).
		Order("paid_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Payment{}, "id = ?", id).Error
}

func (r *repository) CreateReturn(ctx context.Context, ret *models.Return) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) FindReturnByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	var row models.Return
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListReturnsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Return, error) {
	var rows []models.Return
	if err := r.db.WithContext(ctx).
		Where("block_id = ?", blockID).
		Order("returned_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteReturn(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Return{}, "id = ?", id).Error
}

type paymentSums struct {
	BlockID         uuid.UUID       `gorm:"column:block_id"`
	AmountPaid      decimal.Decimal `gorm:"column:amount_paid"`
	TicketsReported int             `gorm:"column:tickets_reported"`
	StubsDelivered  int             `gorm:"column:stubs_delivered"`
}

type returnSums struct {
	BlockID         uuid.UUID `gorm:"column:block_id"`
	TicketsReturned int       `gorm:"column:tickets_returned"`
}

// TotalsByBlock sums payments and returns for one block. excludePaymentID,
// when set, leaves that payment out so edits can re-validate against the rest
// of the ledger.
func (r *repository) TotalsByBlock(ctx context.Context, blockID uuid.UUID, excludePaymentID uuid.UUID) (BlockTotals, error) {
	totals := BlockTotals{AmountPaid: decimal.Zero}

	var pay paymentSums
	query := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount_paid), 0) AS amount_paid, COALESCE(SUM(ticket_count), 0) AS tickets_reported, COALESCE(SUM(stubs_delivered), 0) AS stubs_delivered").
		Where("block_id = ?", blockID)
	if excludePaymentID != uuid.Nil {
		query = query.Where("id <> ?", excludePaymentID)
	}
	if err := query.Scan(&pay).Error; err != nil {
		return totals, err
	}

	var ret returnSums
	if err := r.db.WithContext(ctx).Model(&models.Return{}).
		Select("COALESCE(SUM(quantity), 0) AS tickets_returned").
		Where("block_id = ?", blockID).
		Scan(&ret).Error; err != nil {
		return totals, err
	}

	totals.AmountPaid = pay.AmountPaid
	totals.TicketsReported = pay.TicketsReported
	totals.StubsDelivered = pay.StubsDelivered
	totals.TicketsReturned = ret.TicketsReturned
	return totals, nil
}

// TotalsByCampaign aggregates ledger sums for every block in the campaign in
// two grouped queries.
func (r *repository) TotalsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]BlockTotals, error) {
	result := map[uuid.UUID]BlockTotals{}

	var pays []paymentSums
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("payments.block_id, COALESCE(SUM(payments.amount_paid), 0) AS amount_paid, COALESCE(SUM(payments.ticket_count), 0) AS tickets_reported, COALESCE(SUM(payments.stubs_delivered), 0) AS stubs_delivered").
		Joins("JOIN blocks ON blocks.id = payments.block_id").
		Where("blocks.campaign_id = ?", campaignID).
		Group("payments.block_id").
		Scan(&pays).Error; err != nil {
		return nil, err
	}
	for _, row := range pays {
		result[row.BlockID] = BlockTotals{
			AmountPaid:      row.AmountPaid,
			TicketsReported: row.TicketsReported,
			StubsDelivered:  row.StubsDelivered,
		}
	}

	var rets []returnSums
	if err := r.db.WithContext(ctx).Model(&models.Return{}).
		Select("returns.block_id, COALESCE(SUM(returns.quantity), 0) AS tickets_returned").
		Joins("JOIN blocks ON blocks.id = returns.block_id").
		Where("blocks.campaign_id = ?", campaignID).
		Group("returns.block_id").
		Scan(&rets).Error; err != nil {
		return nil, err
	}
	for _, row := range rets {
		totals, ok := result[row.BlockID]
		if !ok {
			totals = BlockTotals{AmountPaid: decimal.Zero}
		}
		totals.TicketsReturned = row.TicketsReturned
		result[row.BlockID] = totals
	}

	return result, nil
}
