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
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

// SplitResult carries the repointed original block and its new siblings.
type SplitResult struct {
	Original *models.Block
	Siblings []models.Block
}

// SplitBlock divides one block's range among k scouts in input order. The
// first scout absorbs the remainder tickets; the original row is repointed to
// the first sub-range and the k-1 siblings are inserted in the same
// transaction. Blocks with ledger history cannot be split.
func (s *service) SplitBlock(ctx context.Context, blockID uuid.UUID, scoutIDs []uuid.UUID) (*SplitResult, error) {
	if len(scoutIDs) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid split request: at least 2 scouts required")
	}
	seen := make(map[uuid.UUID]struct{}, len(scoutIDs))
	for _, id := range scoutIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scout id is required")
		}
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid split request: duplicate scout")
		}
		seen[id] = struct{}{}
	}

	block, err := s.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountLedgerRows(ctx, blockID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count ledger rows")
	}
	if counts.Total() > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid split request: block has ledger history").
			WithDetails(map[string]int64{"payments": counts.Payments, "returns": counts.Returns})
	}

	k := len(scoutIDs)
	total := block.TicketCount()
	base := total / k
	if base < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid split request: more scouts than tickets")
	}
	remainder := total % k

	scoutRows := make([]*models.Scout, k)
	for i, id := range scoutIDs {
		row, err := s.scouts.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scout not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout")
		}
		scoutRows[i] = row
	}

	// The first share takes base+remainder tickets, the rest take base,
	// carved contiguously from the original start.
	shares := make([]Range, k)
	next := block.StartNumber
	for i := 0; i < k; i++ {
		size := base
		if i == 0 {
			size += remainder
		}
		shares[i] = Range{Start: next, End: next + size - 1}
		next = shares[i].End + 1
	}

	perTicket := block.UnitPrice
	if block.BlockPrice != nil {
		perTicket = block.BlockPrice.Div(decimal.NewFromInt(int64(total)))
	}

	names := make([]string, k)
	for i, row := range scoutRows {
		names[i] = row.Name
	}
	note := fmt.Sprintf("split of %s [%d-%d] among %s",
		block.Name, block.StartNumber, block.EndNumber, strings.Join(names, ", "))

	now := time.Now().UTC()

	original := *block
	original.Name = fmt.Sprintf("%d-%d", shares[0].Start, shares[0].End)
	original.StartNumber = shares[0].Start
	original.EndNumber = shares[0].End
	original.ScoutID = &scoutRows[0].ID
	original.AssignedAt = &now
	original.Notes = appendNote(block.Notes, note)
	if scoutRows[0].Section != nil {
		original.Section = scoutRows[0].Section
	}
	if block.BlockPrice != nil {
		price := perTicket.Mul(decimal.NewFromInt(int64(shares[0].End - shares[0].Start + 1))).Round(2)
		original.BlockPrice = &price
	}

	siblings := make([]models.Block, k-1)
	for i := 1; i < k; i++ {
		share := shares[i]
		scout := scoutRows[i]

		section := block.Section
		if scout.Section != nil {
			section = scout.Section
		}

		sibling := models.Block{
			CampaignID:  block.CampaignID,
			Name:        fmt.Sprintf("%d-%d", share.Start, share.End),
			StartNumber: share.Start,
			EndNumber:   share.End,
			UnitPrice:   block.UnitPrice,
			Section:     section,
			ScoutID:     &scout.ID,
			AssignedAt:  &now,
			Notes:       appendNote(nil, note),
		}
		if block.BlockPrice != nil {
			price := perTicket.Mul(decimal.NewFromInt(int64(share.End - share.Start + 1))).Round(2)
			sibling.BlockPrice = &price
		}
		siblings[i-1] = sibling
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, &original); err != nil {
			return err
		}
		return repo.CreateBatch(ctx, siblings)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "split block")
	}

	return &SplitResult{Original: &original, Siblings: siblings}, nil
}

func appendNote(existing *string, note string) *string {
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return &note
	}
	joined := *existing + "; " + note
	return &joined
}
