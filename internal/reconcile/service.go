package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/internal/blocks"
	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

// epsilon absorbs cent-level rounding when comparing money sums.
var epsilon = decimal.RequireFromString("0.01")

type blocksRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Block, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error)
	ListByScout(ctx context.Context, scoutID uuid.UUID) ([]models.Block, error)
}

type ledgerReader interface {
	BlockTotals(ctx context.Context, blockID uuid.UUID) (ledger.BlockTotals, error)
	CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]ledger.BlockTotals, error)
}

// Statement is the reconciled view of one block.
type Statement struct {
	BlockID         uuid.UUID              `json:"block_id"`
	BlockName       string                 `json:"block_name"`
	StartNumber     int                    `json:"start_number"`
	EndNumber       int                    `json:"end_number"`
	TicketCount     int                    `json:"ticket_count"`
	ScoutID         *uuid.UUID             `json:"scout_id,omitempty"`
	ExpectedTotal   decimal.Decimal        `json:"expected_total"`
	AmountPaid      decimal.Decimal        `json:"amount_paid"`
	Balance         decimal.Decimal        `json:"balance"`
	TicketsReported int                    `json:"tickets_reported"`
	StubsDelivered  int                    `json:"stubs_delivered"`
	StubsPending    int                    `json:"stubs_pending"`
	TicketsReturned int                    `json:"tickets_returned"`
	Settlement      enums.SettlementStatus `json:"settlement"`
	State           enums.BlockState       `json:"state"`
}

// WorklistEntry annotates an unsettled assigned block for the payment screen.
type WorklistEntry struct {
	BlockID      uuid.UUID       `json:"block_id"`
	BlockName    string          `json:"block_name"`
	StartNumber  int             `json:"start_number"`
	EndNumber    int             `json:"end_number"`
	ScoutID      uuid.UUID       `json:"scout_id"`
	Balance      decimal.Decimal `json:"balance"`
	StubsPending int             `json:"stubs_pending"`
}

// CampaignSummary aggregates a campaign's blocks and money position.
type CampaignSummary struct {
	CampaignID      uuid.UUID       `json:"campaign_id"`
	Blocks          int             `json:"blocks"`
	AssignedBlocks  int             `json:"assigned_blocks"`
	FullySettled    int             `json:"fully_settled_blocks"`
	TotalTickets    int             `json:"total_tickets"`
	ExpectedTotal   decimal.Decimal `json:"expected_total"`
	AmountCollected decimal.Decimal `json:"amount_collected"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	TicketsReturned int             `json:"tickets_returned"`
}

// ScoutStatement rolls a scout's blocks up into one view.
type ScoutStatement struct {
	ScoutID         uuid.UUID       `json:"scout_id"`
	Blocks          []Statement     `json:"blocks"`
	ExpectedTotal   decimal.Decimal `json:"expected_total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Balance         decimal.Decimal `json:"balance"`
	TicketsReturned int             `json:"tickets_returned"`
}

// Service answers settlement questions over blocks and their ledgers.
type Service interface {
	Statement(ctx context.Context, blockID uuid.UUID) (*Statement, error)
	Worklist(ctx context.Context, campaignID uuid.UUID) ([]WorklistEntry, error)
	CampaignSummary(ctx context.Context, campaignID uuid.UUID) (*CampaignSummary, error)
	ScoutStatement(ctx context.Context, scoutID uuid.UUID) (*ScoutStatement, error)
}

type service struct {
	blocks blocksRepository
	ledger ledgerReader
}

// NewService builds a reconciliation service over the block and ledger stores.
func NewService(blocksRepo blocksRepository, ledgerReader ledgerReader) (Service, error) {
	if blocksRepo == nil {
		return nil, fmt.Errorf("block repository required")
	}
	if ledgerReader == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	return &service{blocks: blocksRepo, ledger: ledgerReader}, nil
}

// Classify derives the settlement label from expected versus paid. It is a
// pure function: same sums, same label.
func Classify(expected, paid decimal.Decimal) enums.SettlementStatus {
	balance := expected.Sub(paid)
	switch {
	case balance.LessThanOrEqual(epsilon):
		return enums.SettlementFullySettled
	case paid.IsZero():
		return enums.SettlementUnsettled
	default:
		return enums.SettlementPartiallySettled
	}
}

// BuildStatement reconciles one block against its ledger sums.
func BuildStatement(block models.Block, totals ledger.BlockTotals) Statement {
	expected := block.ExpectedTotal()
	balance := expected.Sub(totals.AmountPaid)
	settlement := Classify(expected, totals.AmountPaid)

	return Statement{
		BlockID:         block.ID,
		BlockName:       block.Name,
		StartNumber:     block.StartNumber,
		EndNumber:       block.EndNumber,
		TicketCount:     block.TicketCount(),
		ScoutID:         block.ScoutID,
		ExpectedTotal:   expected,
		AmountPaid:      totals.AmountPaid,
		Balance:         balance,
		TicketsReported: totals.TicketsReported,
		StubsDelivered:  totals.StubsDelivered,
		StubsPending:    totals.TicketsReported - totals.StubsDelivered,
		TicketsReturned: totals.TicketsReturned,
		Settlement:      settlement,
		State: blocks.DeriveState(
			block.ScoutID != nil,
			totals.TicketsReturned,
			settlement == enums.SettlementFullySettled && !totals.AmountPaid.IsZero(),
		),
	}
}

func (s *service) Statement(ctx context.Context, blockID uuid.UUID) (*Statement, error) {
	if blockID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block id is required")
	}

	block, err := s.blocks.FindByID(ctx, blockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "block not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup block")
	}

	totals, err := s.ledger.BlockTotals(ctx, blockID)
	if err != nil {
		return nil, asReconcileError(err, "block totals")
	}

	stmt := BuildStatement(*block, totals)
	return &stmt, nil
}

// Worklist lists assigned blocks still owing money, ascending by start
// number.
func (s *service) Worklist(ctx context.Context, campaignID uuid.UUID) ([]WorklistEntry, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}

	rows, err := s.blocks.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign blocks")
	}
	totalsByBlock, err := s.ledger.CampaignTotals(ctx, campaignID)
	if err != nil {
		return nil, asReconcileError(err, "campaign totals")
	}

	entries := []WorklistEntry{}
	for _, block := range rows {
		if block.ScoutID == nil {
			continue
		}
		totals := totalsByBlock[block.ID]
		if totals.AmountPaid.IsZero() {
			totals.AmountPaid = decimal.Zero
		}
		balance := block.ExpectedTotal().Sub(totals.AmountPaid)
		if balance.LessThanOrEqual(epsilon) {
			continue
		}
		entries = append(entries, WorklistEntry{
			BlockID:      block.ID,
			BlockName:    block.Name,
			StartNumber:  block.StartNumber,
			EndNumber:    block.EndNumber,
			ScoutID:      *block.ScoutID,
			Balance:      balance,
			StubsPending: totals.TicketsReported - totals.StubsDelivered,
		})
	}
	return entries, nil
}

func (s *service) CampaignSummary(ctx context.Context, campaignID uuid.UUID) (*CampaignSummary, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}

	rows, err := s.blocks.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign blocks")
	}
	totalsByBlock, err := s.ledger.CampaignTotals(ctx, campaignID)
	if err != nil {
		return nil, asReconcileError(err, "campaign totals")
	}

	summary := &CampaignSummary{
		CampaignID:      campaignID,
		ExpectedTotal:   decimal.Zero,
		AmountCollected: decimal.Zero,
		Outstanding:     decimal.Zero,
	}
	for _, block := range rows {
		totals := totalsByBlock[block.ID]
		if totals.AmountPaid.IsZero() {
			totals.AmountPaid = decimal.Zero
		}
		expected := block.ExpectedTotal()

		summary.Blocks++
		summary.TotalTickets += block.TicketCount()
		summary.ExpectedTotal = summary.ExpectedTotal.Add(expected)
		summary.AmountCollected = summary.AmountCollected.Add(totals.AmountPaid)
		summary.TicketsReturned += totals.TicketsReturned
		if block.ScoutID != nil {
			summary.AssignedBlocks++
		}
		if Classify(expected, totals.AmountPaid) == enums.SettlementFullySettled {
			summary.FullySettled++
		}
	}
	summary.Outstanding = summary.ExpectedTotal.Sub(summary.AmountCollected)
	return summary, nil
}

func (s *service) ScoutStatement(ctx context.Context, scoutID uuid.UUID) (*ScoutStatement, error) {
	if scoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout id is required")
	}

	rows, err := s.blocks.ListByScout(ctx, scoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scout blocks")
	}

	statement := &ScoutStatement{
		ScoutID:       scoutID,
		Blocks:        []Statement{},
		ExpectedTotal: decimal.Zero,
		AmountPaid:    decimal.Zero,
		Balance:       decimal.Zero,
	}
	for _, block := range rows {
		totals, err := s.ledger.BlockTotals(ctx, block.ID)
		if err != nil {
			return nil, asReconcileError(err, "block totals")
		}
		stmt := BuildStatement(block, totals)
		statement.Blocks = append(statement.Blocks, stmt)
		statement.ExpectedTotal = statement.ExpectedTotal.Add(stmt.ExpectedTotal)
		statement.AmountPaid = statement.AmountPaid.Add(stmt.AmountPaid)
		statement.TicketsReturned += stmt.TicketsReturned
	}
	statement.Balance = statement.ExpectedTotal.Sub(statement.AmountPaid)
	return statement, nil
}

func asReconcileError(err error, op string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
