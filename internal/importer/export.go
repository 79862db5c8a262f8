package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/internal/reconcile"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

var exportHeader = []string{
	"Block", "Section", "Scout", "Start", "End", "Tickets",
	"Expected", "Paid", "Balance",
	"Stubs Delivered", "Stubs Pending", "Returned",
	"Settlement", "State",
}

// ExportBlocks renders every block of the campaign with its reconciliation
// columns into a fresh workbook. The caller owns closing the file.
func (s *service) ExportBlocks(ctx context.Context, campaignID uuid.UUID) (*excelize.File, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}

	if _, err := s.repo.FindCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign")
	}

	rows, err := s.repo.ListBlocksByCampaign(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign blocks")
	}
	totalsByBlock, err := s.ledger.CampaignTotals(ctx, campaignID)
	if err != nil {
		return nil, asImportError(err, "campaign totals")
	}

	workbook := excelize.NewFile()
	sheet := s.cfg.SheetNameBlocks
	if err := workbook.SetSheetName(workbook.GetSheetName(0), sheet); err != nil {
		workbook.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rename sheet")
	}

	if err := writeRow(workbook, sheet, 1, headerValues()); err != nil {
		workbook.Close()
		return nil, err
	}

	scoutNames := map[uuid.UUID]string{}
	for i, block := range rows {
		scoutName := ""
		if block.ScoutID != nil {
			name, ok := scoutNames[*block.ScoutID]
			if !ok {
				scout, err := s.repo.FindScoutByID(ctx, *block.ScoutID)
				if err != nil {
					workbook.Close()
					return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scout")
				}
				name = scout.Name
				scoutNames[*block.ScoutID] = name
			}
			scoutName = name
		}

		section := ""
		if block.Section != nil {
			section = string(*block.Section)
		}

		stmt := reconcile.BuildStatement(block, totalsByBlock[block.ID])
		values := []any{
			block.Name, section, scoutName,
			block.StartNumber, block.EndNumber, stmt.TicketCount,
			stmt.ExpectedTotal.StringFixed(2), stmt.AmountPaid.StringFixed(2), stmt.Balance.StringFixed(2),
			stmt.StubsDelivered, stmt.StubsPending, stmt.TicketsReturned,
			string(stmt.Settlement), string(stmt.State),
		}
		if err := writeRow(workbook, sheet, i+2, values); err != nil {
			workbook.Close()
			return nil, err
		}
	}

	return workbook, nil
}

func headerValues() []any {
	values := make([]any, len(exportHeader))
	for i, title := range exportHeader {
		values[i] = title
	}
	return values
}

func writeRow(workbook *excelize.File, sheet string, rowNumber int, values []any) error {
	for col, value := range values {
		cellName, err := excelize.CoordinatesToCellName(col+1, rowNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("cell name row %d", rowNumber))
		}
		if err := workbook.SetCellValue(sheet, cellName, value); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("write row %d", rowNumber))
		}
	}
	return nil
}
