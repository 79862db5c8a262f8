package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

// fakeRepository keeps ledger rows in memory so tests can exercise the
// re-read-inside-transaction contract end to end.
type fakeRepository struct {
	block    *models.Block
	payments []models.Payment
	returns  []models.Return
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindBlock(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	if f.block == nil || f.block.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.block
	return &copied, nil
}

func (f *fakeRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeRepository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	for _, row := range f.payments {
		if row.ID == id {
			copied := row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListPaymentsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	for _, row := range f.payments {
		if row.BlockID == blockID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	for i, row := range f.payments {
		if row.ID == payment.ID {
			f.payments[i] = *payment
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	for i, row := range f.payments {
		if row.ID == id {
			f.payments = append(f.payments[:i], f.payments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateReturn(ctx context.Context, ret *models.Return) error {
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	f.returns = append(f.returns, *ret)
	return nil
}

func (f *fakeRepository) FindReturnByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	for _, row := range f.returns {
		if row.ID == id {
			copied := row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListReturnsByBlock(ctx context.Context, blockID uuid.UUID) ([]models.Return, error) {
	var rows []models.Return
	for _, row := range f.returns {
		if row.BlockID == blockID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeRepository) DeleteReturn(ctx context.Context, id uuid.UUID) error {
	for i, row := range f.returns {
		if row.ID == id {
			f.returns = append(f.returns[:i], f.returns[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) TotalsByBlock(ctx context.Context, blockID uuid.UUID, excludePaymentID uuid.UUID) (BlockTotals, error) {
	totals := BlockTotals{AmountPaid: decimal.Zero}
	for _, row := range f.payments {
		if row.BlockID != blockID || row.ID == excludePaymentID {
			continue
		}
		totals.AmountPaid = totals.AmountPaid.Add(row.AmountPaid)
		totals.TicketsReported += row.TicketCount
		totals.StubsDelivered += row.StubsDelivered
	}
	for _, row := range f.returns {
		if row.BlockID == blockID {
			totals.TicketsReturned += row.Quantity
		}
	}
	return totals, nil
}

func (f *fakeRepository) TotalsByCampaign(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]BlockTotals, error) {
	result := map[uuid.UUID]BlockTotals{}
	if f.block != nil && f.block.CampaignID == campaignID {
		totals, _ := f.TotalsByBlock(ctx, f.block.ID, uuid.Nil)
		result[f.block.ID] = totals
	}
	return result, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func assignedBlock(tickets int) *models.Block {
	scoutID := uuid.New()
	now := time.Now().UTC()
	return &models.Block{
		ID:          uuid.New(),
		CampaignID:  uuid.New(),
		Name:        "1-10",
		StartNumber: 1,
		EndNumber:   tickets,
		UnitPrice:   decimal.RequireFromString("1.00"),
		ScoutID:     &scoutID,
		AssignedAt:  &now,
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return appErr.Code()
}

// Payments fill a 10-ticket block in two steps; a third is rejected with the
// ledger left untouched.
func TestRecordPaymentFillsBlockThenRejects(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:        repo.block.ID,
		Amount:         decimal.RequireFromString("6.00"),
		TicketCount:    6,
		StubsDelivered: 6,
		Method:         enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("first payment error: %v", err)
	}
	if first.StubsExpected != 6 {
		t.Fatalf("expected stubs_expected defaulted to ticket count, got %d", first.StubsExpected)
	}

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:     repo.block.ID,
		Amount:      decimal.RequireFromString("4.00"),
		TicketCount: 4,
		Method:      enums.PaymentMethodMBWay,
	})
	if err != nil {
		t.Fatalf("second payment error: %v", err)
	}

	totals, err := svc.BlockTotals(ctx, repo.block.ID)
	if err != nil {
		t.Fatalf("BlockTotals error: %v", err)
	}
	if totals.TicketsReported != 10 {
		t.Fatalf("expected 10 tickets reported, got %d", totals.TicketsReported)
	}
	if !totals.AmountPaid.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected 10.00 paid, got %s", totals.AmountPaid)
	}

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:     repo.block.ID,
		Amount:      decimal.RequireFromString("1.00"),
		TicketCount: 1,
		Method:      enums.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected over allocation error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
	if len(repo.payments) != 2 {
		t.Fatalf("rejected payment must not be written, have %d rows", len(repo.payments))
	}
}

func TestRecordPaymentUnassignedBlock(t *testing.T) {
	block := assignedBlock(10)
	block.ScoutID = nil
	block.AssignedAt = nil
	repo := &fakeRepository{block: block}
	svc := newTestService(t, repo)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		BlockID:     block.ID,
		Amount:      decimal.RequireFromString("1.00"),
		TicketCount: 1,
		Method:      enums.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
	if len(repo.payments) != 0 {
		t.Fatal("nothing must be written")
	}
}

func TestRecordPaymentNegativeAmount(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		BlockID: repo.block.ID,
		Amount:  decimal.RequireFromString("-1.00"),
		Method:  enums.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
}

func TestRecordPaymentStubsOverExpected(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		BlockID:        repo.block.ID,
		Amount:         decimal.RequireFromString("2.00"),
		TicketCount:    2,
		StubsDelivered: 5,
		StubsExpected:  2,
		Method:         enums.PaymentMethodCash,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
}

func TestUpdatePaymentRevalidatesAllocation(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:     repo.block.ID,
		Amount:      decimal.RequireFromString("6.00"),
		TicketCount: 6,
		Method:      enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("first payment error: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:     repo.block.ID,
		Amount:      decimal.RequireFromString("4.00"),
		TicketCount: 4,
		Method:      enums.PaymentMethodCash,
	}); err != nil {
		t.Fatalf("second payment error: %v", err)
	}

	// Raising the first payment to 7 tickets would overflow 10.
	seven := 7
	_, err = svc.UpdatePayment(ctx, first.ID, UpdatePaymentInput{TicketCount: &seven})
	if err == nil {
		t.Fatal("expected over allocation error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}

	// Shrinking it is fine.
	five := 5
	updated, err := svc.UpdatePayment(ctx, first.ID, UpdatePaymentInput{TicketCount: &five})
	if err != nil {
		t.Fatalf("UpdatePayment error: %v", err)
	}
	if updated.TicketCount != 5 {
		t.Fatalf("expected 5 tickets, got %d", updated.TicketCount)
	}
}

func TestRecordReturn(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)
	ctx := context.Background()

	ret, err := svc.RecordReturn(ctx, RecordReturnInput{
		BlockID:  repo.block.ID,
		Quantity: 4,
	})
	if err != nil {
		t.Fatalf("RecordReturn error: %v", err)
	}
	if ret.ScoutID != *repo.block.ScoutID {
		t.Fatal("return must be attributed to the assigned scout")
	}

	_, err = svc.RecordReturn(ctx, RecordReturnInput{
		BlockID:  repo.block.ID,
		Quantity: 7,
	})
	if err == nil {
		t.Fatal("expected over return error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict code, got %s", got)
	}
	if len(repo.returns) != 1 {
		t.Fatalf("rejected return must not be written, have %d rows", len(repo.returns))
	}
}

func TestRecordReturnQuantityValidation(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)

	_, err := svc.RecordReturn(context.Background(), RecordReturnInput{
		BlockID:  repo.block.ID,
		Quantity: 0,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := codeOf(t, err); got != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", got)
	}
}

func TestDeletePayment(t *testing.T) {
	repo := &fakeRepository{block: assignedBlock(10)}
	svc := newTestService(t, repo)
	ctx := context.Background()

	payment, err := svc.RecordPayment(ctx, RecordPaymentInput{
		BlockID:     repo.block.ID,
		Amount:      decimal.RequireFromString("3.00"),
		TicketCount: 3,
		Method:      enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}

	if err := svc.DeletePayment(ctx, payment.ID); err != nil {
		t.Fatalf("DeletePayment error: %v", err)
	}

	totals, err := svc.BlockTotals(ctx, repo.block.ID)
	if err != nil {
		t.Fatalf("BlockTotals error: %v", err)
	}
	if totals.TicketsReported != 0 || !totals.AmountPaid.IsZero() {
		t.Fatalf("expected empty totals after delete, got %+v", totals)
	}
}
