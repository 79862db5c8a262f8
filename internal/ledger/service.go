package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
	"github.com/ricardofaria/raffletrack-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the block ledger write and aggregate surface.
type Service interface {
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, blockID uuid.UUID) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, input UpdatePaymentInput) (*models.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	RecordReturn(ctx context.Context, input RecordReturnInput) (*models.Return, error)
	ListReturns(ctx context.Context, blockID uuid.UUID) ([]models.Return, error)
	DeleteReturn(ctx context.Context, id uuid.UUID) error
	BlockTotals(ctx context.Context, blockID uuid.UUID) (BlockTotals, error)
	CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]BlockTotals, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.LedgerMetrics
}

// RecordPaymentInput holds the fields required to record a payment.
type RecordPaymentInput struct {
	BlockID        uuid.UUID
	Amount         decimal.Decimal
	TicketCount    int
	StubsDelivered int
	StubsExpected  int
	Method         enums.PaymentMethod
	Reference      *string
	Notes          *string
	StubNotes      *string
	PaidAt         time.Time
}

// UpdatePaymentInput carries optional payment edits; nil means unchanged.
type UpdatePaymentInput struct {
	Amount         *decimal.Decimal
	TicketCount    *int
	StubsDelivered *int
	StubsExpected  *int
	Method         *enums.PaymentMethod
	Reference      *string
	Notes          *string
	StubNotes      *string
	PaidAt         *time.Time
}

// RecordReturnInput holds the fields required to record a ticket return.
type RecordReturnInput struct {
	BlockID    uuid.UUID
	Quantity   int
	Reason     *string
	ReturnedAt time.Time
}

// NewService builds a ledger service backed by the provided repository.
func NewService(repo Repository, tx txRunner, m *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

// RecordPayment validates the input, then re-reads the block's cumulative
// ledger state inside one transaction before inserting, so two stale forms
// cannot jointly push tickets_reported past the block's capacity.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if input.BlockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_id is required")
	}
	if input.Amount.IsNegative() {
		s.metrics.IncRejection("invalid_amount")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid amount: must not be negative")
	}
	if input.TicketCount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket_count must not be negative")
	}
	if input.StubsDelivered < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stubs_delivered must not be negative")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	stubsExpected := input.StubsExpected
	if stubsExpected == 0 {
		stubsExpected = input.TicketCount
	}
	if input.StubsDelivered > stubsExpected {
		s.metrics.IncRejection("stubs_over_expected")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stubs delivered exceed stubs expected")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	payment := &models.Payment{
		BlockID:        input.BlockID,
		AmountPaid:     input.Amount,
		TicketCount:    input.TicketCount,
		StubsDelivered: input.StubsDelivered,
		StubsExpected:  stubsExpected,
		Method:         input.Method,
		Reference:      input.Reference,
		Notes:          input.Notes,
		StubNotes:      input.StubNotes,
		PaidAt:         paidAt,
	}
	if input.StubsDelivered > 0 {
		payment.StubsDeliveredAt = &paidAt
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		block, err := repo.FindBlock(ctx, input.BlockID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "block not found")
			}
			return err
		}
		if block.ScoutID == nil {
			s.metrics.IncRejection("not_assigned")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "block has no assigned scout")
		}

		totals, err := repo.TotalsByBlock(ctx, input.BlockID, uuid.Nil)
		if err != nil {
			return err
		}
		if totals.TicketsReported+input.TicketCount > block.TicketCount() {
			s.metrics.IncRejection("over_allocation")
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("over allocation: %d tickets already reported of %d", totals.TicketsReported, block.TicketCount()))
		}

		return repo.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, asLedgerError(err, "record payment")
	}

	s.metrics.IncPayment(string(payment.Method), payment.AmountPaid)
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	row, err := s.repo.FindPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	return row, nil
}

func (s *service) ListPayments(ctx context.Context, blockID uuid.UUID) ([]models.Payment, error) {
	if blockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_id is required")
	}
	rows, err := s.repo.ListPaymentsByBlock(ctx, blockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

// UpdatePayment re-checks the allocation invariant against the ledger minus
// the edited row before saving.
func (s *service) UpdatePayment(ctx context.Context, id uuid.UUID, input UpdatePaymentInput) (*models.Payment, error) {
	row, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Amount != nil {
		if input.Amount.IsNegative() {
			s.metrics.IncRejection("invalid_amount")
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid amount: must not be negative")
		}
		row.AmountPaid = *input.Amount
	}
	if input.TicketCount != nil {
		if *input.TicketCount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket_count must not be negative")
		}
		row.TicketCount = *input.TicketCount
	}
	if input.StubsDelivered != nil {
		if *input.StubsDelivered < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stubs_delivered must not be negative")
		}
		row.StubsDelivered = *input.StubsDelivered
	}
	if input.StubsExpected != nil {
		row.StubsExpected = *input.StubsExpected
	}
	if row.StubsDelivered > row.StubsExpected {
		s.metrics.IncRejection("stubs_over_expected")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stubs delivered exceed stubs expected")
	}
	if input.Method != nil {
		if !input.Method.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
		}
		row.Method = *input.Method
	}
	if input.Reference != nil {
		row.Reference = input.Reference
	}
	if input.Notes != nil {
		row.Notes = input.Notes
	}
	if input.StubNotes != nil {
		row.StubNotes = input.StubNotes
	}
	if input.PaidAt != nil {
		row.PaidAt = *input.PaidAt
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		block, err := repo.FindBlock(ctx, row.BlockID)
		if err != nil {
			return err
		}

		totals, err := repo.TotalsByBlock(ctx, row.BlockID, row.ID)
		if err != nil {
			return err
		}
		if totals.TicketsReported+row.TicketCount > block.TicketCount() {
			s.metrics.IncRejection("over_allocation")
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("over allocation: %d tickets already reported of %d", totals.TicketsReported, block.TicketCount()))
		}

		return repo.UpdatePayment(ctx, row)
	})
	if err != nil {
		return nil, asLedgerError(err, "update payment")
	}
	return row, nil
}

// DeletePayment removes a payment; balances are recomputed from the remaining
// rows on the next read.
func (s *service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetPayment(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment")
	}
	return nil
}

// RecordReturn validates the input, then re-reads cumulative returns inside
// one transaction so the block can never report more returned tickets than it
// holds.
func (s *service) RecordReturn(ctx context.Context, input RecordReturnInput) (*models.Return, error) {
	if input.BlockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	returnedAt := input.ReturnedAt
	if returnedAt.IsZero() {
		returnedAt = time.Now().UTC()
	}

	ret := &models.Return{
		BlockID:    input.BlockID,
		Quantity:   input.Quantity,
		Reason:     input.Reason,
		ReturnedAt: returnedAt,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		block, err := repo.FindBlock(ctx, input.BlockID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "block not found")
			}
			return err
		}
		if block.ScoutID == nil {
			s.metrics.IncRejection("not_assigned")
			return pkgerrors.New(pkgerrors.CodeStateConflict, "block has no assigned scout")
		}
		ret.ScoutID = *block.ScoutID

		totals, err := repo.TotalsByBlock(ctx, input.BlockID, uuid.Nil)
		if err != nil {
			return err
		}
		if totals.TicketsReturned+input.Quantity > block.TicketCount() {
			s.metrics.IncRejection("over_return")
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("over return: %d tickets already returned of %d", totals.TicketsReturned, block.TicketCount()))
		}

		return repo.CreateReturn(ctx, ret)
	})
	if err != nil {
		return nil, asLedgerError(err, "record return")
	}

	s.metrics.IncReturn()
	return ret, nil
}

func (s *service) ListReturns(ctx context.Context, blockID uuid.UUID) ([]models.Return, error) {
	if blockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_id is required")
	}
	rows, err := s.repo.ListReturnsByBlock(ctx, blockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return rows, nil
}

func (s *service) DeleteReturn(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id is required")
	}
	if _, err := s.repo.FindReturnByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup return")
	}
	if err := s.repo.DeleteReturn(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete return")
	}
	return nil
}

func (s *service) BlockTotals(ctx context.Context, blockID uuid.UUID) (BlockTotals, error) {
	if blockID == uuid.Nil {
		return BlockTotals{}, pkgerrors.New(pkgerrors.CodeValidation, "block_id is required")
	}
	totals, err := s.repo.TotalsByBlock(ctx, blockID, uuid.Nil)
	if err != nil {
		return BlockTotals{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "block totals")
	}
	return totals, nil
}

func (s *service) CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]BlockTotals, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign_id is required")
	}
	totals, err := s.repo.TotalsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "campaign totals")
	}
	return totals, nil
}

// asLedgerError keeps coded rejections intact and wraps raw store failures.
func asLedgerError(err error, op string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
