package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

type fakeBlocks struct {
	findByID       func(ctx context.Context, id uuid.UUID) (*models.Block, error)
	listByCampaign func(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error)
	listByScout    func(ctx context.Context, scoutID uuid.UUID) ([]models.Block, error)
}

func (f *fakeBlocks) FindByID(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	return f.findByID(ctx, id)
}

func (f *fakeBlocks) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error) {
	return f.listByCampaign(ctx, campaignID)
}

func (f *fakeBlocks) ListByScout(ctx context.Context, scoutID uuid.UUID) ([]models.Block, error) {
	return f.listByScout(ctx, scoutID)
}

type fakeLedger struct {
	totals map[uuid.UUID]ledger.BlockTotals
}

func (f *fakeLedger) BlockTotals(ctx context.Context, blockID uuid.UUID) (ledger.BlockTotals, error) {
	totals, ok := f.totals[blockID]
	if !ok {
		return ledger.BlockTotals{AmountPaid: decimal.Zero}, nil
	}
	return totals, nil
}

func (f *fakeLedger) CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]ledger.BlockTotals, error) {
	return f.totals, nil
}

func money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testBlock(start, end int, unitPrice string, scoutID *uuid.UUID) models.Block {
	return models.Block{
		ID:          uuid.New(),
		CampaignID:  uuid.New(),
		Name:        "421-430",
		StartNumber: start,
		EndNumber:   end,
		UnitPrice:   money(unitPrice),
		ScoutID:     scoutID,
	}
}

func codeOf(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return appErr.Code()
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		expected string
		paid     string
		want     enums.SettlementStatus
	}{
		{"nothing paid", "10.00", "0", enums.SettlementUnsettled},
		{"partial", "10.00", "6.00", enums.SettlementPartiallySettled},
		{"exact", "10.00", "10.00", enums.SettlementFullySettled},
		{"within epsilon", "10.00", "9.99", enums.SettlementFullySettled},
		{"just outside epsilon", "10.00", "9.98", enums.SettlementPartiallySettled},
		{"overpaid", "10.00", "10.50", enums.SettlementFullySettled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(money(tc.expected), money(tc.paid))
			if got != tc.want {
				t.Fatalf("Classify(%s, %s) = %s, want %s", tc.expected, tc.paid, got, tc.want)
			}
		})
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	expected := money("10.00")
	paid := money("6.00")

	first := Classify(expected, paid)
	for i := 0; i < 3; i++ {
		if got := Classify(expected, paid); got != first {
			t.Fatalf("classification changed between calls: %s then %s", first, got)
		}
	}
}

func TestStatementPartialThenSettled(t *testing.T) {
	scoutID := uuid.New()
	block := testBlock(421, 430, "1.00", &scoutID)

	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		block.ID: {
			AmountPaid:      money("6.00"),
			TicketsReported: 6,
			StubsDelivered:  6,
		},
	}}
	repo := &fakeBlocks{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Block, error) {
			return &block, nil
		},
	}
	svc, err := NewService(repo, store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	stmt, err := svc.Statement(context.Background(), block.ID)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if !stmt.ExpectedTotal.Equal(money("10.00")) {
		t.Fatalf("expected total = %s, want 10.00", stmt.ExpectedTotal)
	}
	if !stmt.Balance.Equal(money("4.00")) {
		t.Fatalf("balance = %s, want 4.00", stmt.Balance)
	}
	if stmt.Settlement != enums.SettlementPartiallySettled {
		t.Fatalf("settlement = %s, want partially_settled", stmt.Settlement)
	}
	if stmt.StubsPending != 0 {
		t.Fatalf("stubs pending = %d, want 0", stmt.StubsPending)
	}
	if stmt.State != enums.BlockStateAssigned {
		t.Fatalf("state = %s, want assigned", stmt.State)
	}

	// Second payment closes the block.
	store.totals[block.ID] = ledger.BlockTotals{
		AmountPaid:      money("10.00"),
		TicketsReported: 10,
		StubsDelivered:  6,
	}

	stmt, err = svc.Statement(context.Background(), block.ID)
	if err != nil {
		t.Fatalf("Statement after second payment: %v", err)
	}
	if !stmt.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", stmt.Balance)
	}
	if stmt.Settlement != enums.SettlementFullySettled {
		t.Fatalf("settlement = %s, want fully_settled", stmt.Settlement)
	}
	if stmt.StubsPending != 4 {
		t.Fatalf("stubs pending = %d, want 4", stmt.StubsPending)
	}
	if stmt.State != enums.BlockStateSold {
		t.Fatalf("state = %s, want sold", stmt.State)
	}
}

func TestStatementUnassignedBlockIsAvailable(t *testing.T) {
	block := testBlock(1, 10, "1.00", nil)

	repo := &fakeBlocks{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Block, error) {
			return &block, nil
		},
	}
	svc, _ := NewService(repo, &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{}})

	stmt, err := svc.Statement(context.Background(), block.ID)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if stmt.Settlement != enums.SettlementUnsettled {
		t.Fatalf("settlement = %s, want unsettled", stmt.Settlement)
	}
	if stmt.State != enums.BlockStateAvailable {
		t.Fatalf("state = %s, want available", stmt.State)
	}
}

func TestStatementReturnedBlock(t *testing.T) {
	scoutID := uuid.New()
	block := testBlock(1, 10, "1.00", &scoutID)

	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		block.ID: {AmountPaid: decimal.Zero, TicketsReturned: 10},
	}}
	repo := &fakeBlocks{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Block, error) {
			return &block, nil
		},
	}
	svc, _ := NewService(repo, store)

	stmt, err := svc.Statement(context.Background(), block.ID)
	if err != nil {
		t.Fatalf("Statement: %v", err)
	}
	if stmt.State != enums.BlockStateReturned {
		t.Fatalf("state = %s, want returned", stmt.State)
	}
	if stmt.TicketsReturned != 10 {
		t.Fatalf("tickets returned = %d, want 10", stmt.TicketsReturned)
	}
}

func TestStatementBlockNotFound(t *testing.T) {
	repo := &fakeBlocks{
		findByID: func(ctx context.Context, id uuid.UUID) (*models.Block, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc, _ := NewService(repo, &fakeLedger{})

	_, err := svc.Statement(context.Background(), uuid.New())
	if codeOf(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWorklistSkipsSettledAndUnassigned(t *testing.T) {
	scoutA := uuid.New()
	scoutB := uuid.New()
	campaignID := uuid.New()

	owing := testBlock(11, 20, "1.00", &scoutA)
	owing.Name = "11-20"
	settled := testBlock(1, 10, "1.00", &scoutB)
	settled.Name = "1-10"
	unassigned := testBlock(21, 30, "1.00", nil)
	unassigned.Name = "21-30"

	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		settled.ID: {AmountPaid: money("10.00"), TicketsReported: 10, StubsDelivered: 10},
		owing.ID:   {AmountPaid: money("3.00"), TicketsReported: 3, StubsDelivered: 1},
	}}
	repo := &fakeBlocks{
		listByCampaign: func(ctx context.Context, id uuid.UUID) ([]models.Block, error) {
			return []models.Block{settled, owing, unassigned}, nil
		},
	}
	svc, _ := NewService(repo, store)

	entries, err := svc.Worklist(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("Worklist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 worklist entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.BlockID != owing.ID {
		t.Fatalf("unexpected block in worklist: %s", entry.BlockName)
	}
	if !entry.Balance.Equal(money("7.00")) {
		t.Fatalf("balance = %s, want 7.00", entry.Balance)
	}
	if entry.StubsPending != 2 {
		t.Fatalf("stubs pending = %d, want 2", entry.StubsPending)
	}
}

func TestWorklistIncludesBlocksWithNoLedgerRows(t *testing.T) {
	scoutID := uuid.New()
	untouched := testBlock(1, 10, "1.00", &scoutID)

	repo := &fakeBlocks{
		listByCampaign: func(ctx context.Context, id uuid.UUID) ([]models.Block, error) {
			return []models.Block{untouched}, nil
		},
	}
	svc, _ := NewService(repo, &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{}})

	entries, err := svc.Worklist(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Worklist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected untouched assigned block on worklist, got %d entries", len(entries))
	}
	if !entries[0].Balance.Equal(money("10.00")) {
		t.Fatalf("balance = %s, want 10.00", entries[0].Balance)
	}
}

func TestCampaignSummary(t *testing.T) {
	scoutA := uuid.New()
	scoutB := uuid.New()

	settled := testBlock(1, 10, "1.00", &scoutA)
	owing := testBlock(11, 20, "1.00", &scoutB)
	unassigned := testBlock(21, 30, "1.00", nil)

	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		settled.ID: {AmountPaid: money("10.00"), TicketsReported: 10, StubsDelivered: 10},
		owing.ID:   {AmountPaid: money("3.50"), TicketsReported: 4, StubsDelivered: 4, TicketsReturned: 2},
	}}
	repo := &fakeBlocks{
		listByCampaign: func(ctx context.Context, id uuid.UUID) ([]models.Block, error) {
			return []models.Block{settled, owing, unassigned}, nil
		},
	}
	svc, _ := NewService(repo, store)

	summary, err := svc.CampaignSummary(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("CampaignSummary: %v", err)
	}
	if summary.Blocks != 3 || summary.AssignedBlocks != 2 {
		t.Fatalf("blocks = %d assigned = %d, want 3 and 2", summary.Blocks, summary.AssignedBlocks)
	}
	if summary.TotalTickets != 30 {
		t.Fatalf("total tickets = %d, want 30", summary.TotalTickets)
	}
	if !summary.ExpectedTotal.Equal(money("30.00")) {
		t.Fatalf("expected total = %s, want 30.00", summary.ExpectedTotal)
	}
	if !summary.AmountCollected.Equal(money("13.50")) {
		t.Fatalf("collected = %s, want 13.50", summary.AmountCollected)
	}
	if !summary.Outstanding.Equal(money("16.50")) {
		t.Fatalf("outstanding = %s, want 16.50", summary.Outstanding)
	}
	if summary.FullySettled != 1 {
		t.Fatalf("fully settled = %d, want 1", summary.FullySettled)
	}
	if summary.TicketsReturned != 2 {
		t.Fatalf("tickets returned = %d, want 2", summary.TicketsReturned)
	}
}

func TestScoutStatementRollsUpBlocks(t *testing.T) {
	scoutID := uuid.New()

	first := testBlock(1, 10, "1.00", &scoutID)
	second := testBlock(11, 20, "1.00", &scoutID)

	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		first.ID:  {AmountPaid: money("10.00"), TicketsReported: 10, StubsDelivered: 10},
		second.ID: {AmountPaid: money("2.00"), TicketsReported: 2, StubsDelivered: 0},
	}}
	repo := &fakeBlocks{
		listByScout: func(ctx context.Context, id uuid.UUID) ([]models.Block, error) {
			return []models.Block{first, second}, nil
		},
	}
	svc, _ := NewService(repo, store)

	stmt, err := svc.ScoutStatement(context.Background(), scoutID)
	if err != nil {
		t.Fatalf("ScoutStatement: %v", err)
	}
	if len(stmt.Blocks) != 2 {
		t.Fatalf("expected 2 block statements, got %d", len(stmt.Blocks))
	}
	if !stmt.ExpectedTotal.Equal(money("20.00")) {
		t.Fatalf("expected total = %s, want 20.00", stmt.ExpectedTotal)
	}
	if !stmt.AmountPaid.Equal(money("12.00")) {
		t.Fatalf("amount paid = %s, want 12.00", stmt.AmountPaid)
	}
	if !stmt.Balance.Equal(money("8.00")) {
		t.Fatalf("balance = %s, want 8.00", stmt.Balance)
	}
	if stmt.Blocks[0].Settlement != enums.SettlementFullySettled {
		t.Fatalf("first block settlement = %s, want fully_settled", stmt.Blocks[0].Settlement)
	}
	if stmt.Blocks[1].Settlement != enums.SettlementPartiallySettled {
		t.Fatalf("second block settlement = %s, want partially_settled", stmt.Blocks[1].Settlement)
	}
}

func TestValidationRejectsNilIDs(t *testing.T) {
	svc, _ := NewService(&fakeBlocks{}, &fakeLedger{})

	if _, err := svc.Statement(context.Background(), uuid.Nil); codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for nil block id, got %v", err)
	}
	if _, err := svc.Worklist(context.Background(), uuid.Nil); codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for nil campaign id, got %v", err)
	}
	if _, err := svc.ScoutStatement(context.Background(), uuid.Nil); codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for nil scout id, got %v", err)
	}
}
