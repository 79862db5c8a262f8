package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/config"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

// Import sheet layout, one block per row after the header:
// Section | Scout | Start | End | Notes
const (
	colSection = 0
	colScout   = 1
	colStart   = 2
	colEnd     = 3
	colNotes   = 4
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerReader interface {
	CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]ledger.BlockTotals, error)
}

// ImportInput carries an uploaded workbook and the campaign it lands in.
// UnitPrice applies to every imported block; the sheet does not carry prices.
type ImportInput struct {
	CampaignID uuid.UUID
	UnitPrice  decimal.Decimal
	Reader     io.Reader
}

// ImportResult summarizes what an import wrote.
type ImportResult struct {
	ScoutsCreated int `json:"scouts_created"`
	BlocksCreated int `json:"blocks_created"`
	RowsProcessed int `json:"rows_processed"`
}

// Service round-trips campaign data through xlsx workbooks.
type Service interface {
	ImportBlocks(ctx context.Context, input ImportInput) (*ImportResult, error)
	ExportBlocks(ctx context.Context, campaignID uuid.UUID) (*excelize.File, error)
}

type service struct {
	repo   Repository
	ledger ledgerReader
	tx     txRunner
	cfg    config.ImportConfig
}

// NewService builds the spreadsheet import/export service.
func NewService(repo Repository, ledgerReader ledgerReader, tx txRunner, cfg config.ImportConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("import repository required")
	}
	if ledgerReader == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, ledger: ledgerReader, tx: tx, cfg: cfg}, nil
}

// importRow is one parsed sheet row. RowNumber is the 1-based sheet row so
// errors point at the cell the operator sees.
type importRow struct {
	RowNumber int
	Section   enums.Section
	ScoutName string
	Start     int
	End       int
	Notes     string
}

func (s *service) ImportBlocks(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if input.CampaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if input.Reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook is required")
	}

	workbook, err := excelize.OpenReader(input.Reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open workbook")
	}
	defer workbook.Close()

	sheetRows, err := workbook.GetRows(s.cfg.SheetNameBlocks)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err,
			fmt.Sprintf("sheet %q not found", s.cfg.SheetNameBlocks))
	}
	if len(sheetRows) <= 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no data rows")
	}
	if len(sheetRows)-1 > s.cfg.MaxRows {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("workbook has %d rows, limit is %d", len(sheetRows)-1, s.cfg.MaxRows))
	}

	rows, err := parseRows(sheetRows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid workbook")
	}

	campaign, err := s.repo.FindCampaign(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign")
	}

	result := &ImportResult{RowsProcessed: len(rows)}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Scout names dedupe case-insensitively, within the file and
		// against the database.
		scoutIDs := map[string]uuid.UUID{}
		for _, row := range rows {
			if row.ScoutName == "" {
				continue
			}
			key := strings.ToLower(row.ScoutName)
			if _, ok := scoutIDs[key]; ok {
				continue
			}

			existing, err := repo.FindScoutByName(ctx, row.ScoutName)
			if err == nil {
				scoutIDs[key] = existing.ID
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("row %d: lookup scout %q: %w", row.RowNumber, row.ScoutName, err)
			}

			section := row.Section
			created, err := repo.CreateScout(ctx, &models.Scout{
				Name:    row.ScoutName,
				Section: &section,
				Active:  true,
			})
			if err != nil {
				return fmt.Errorf("row %d: create scout %q: %w", row.RowNumber, row.ScoutName, err)
			}
			scoutIDs[key] = created.ID
			result.ScoutsCreated++
		}

		now := time.Now().UTC()
		batch := make([]models.Block, 0, len(rows))
		for _, row := range rows {
			overlapping, err := repo.CountOverlapping(ctx, campaign.ID, row.Start, row.End)
			if err != nil {
				return fmt.Errorf("row %d: check overlap: %w", row.RowNumber, err)
			}
			if overlapping > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("row %d: range [%d, %d] overlaps an existing block", row.RowNumber, row.Start, row.End))
			}

			section := row.Section
			block := models.Block{
				CampaignID:  campaign.ID,
				Name:        fmt.Sprintf("%d-%d", row.Start, row.End),
				StartNumber: row.Start,
				EndNumber:   row.End,
				UnitPrice:   input.UnitPrice,
				Section:     &section,
			}
			if row.Notes != "" {
				notes := row.Notes
				block.Notes = &notes
			}
			if row.ScoutName != "" {
				scoutID := scoutIDs[strings.ToLower(row.ScoutName)]
				block.ScoutID = &scoutID
				assignedAt := now
				block.AssignedAt = &assignedAt
			}
			batch = append(batch, block)
		}

		if err := repo.CreateBlocks(ctx, batch); err != nil {
			return fmt.Errorf("insert blocks: %w", err)
		}
		result.BlocksCreated = len(batch)
		return nil
	})
	if err != nil {
		return nil, asImportError(err, "import blocks")
	}
	return result, nil
}

// parseRows validates every data row and reports all violations at once.
func parseRows(sheetRows [][]string) ([]importRow, error) {
	var violations error
	rows := make([]importRow, 0, len(sheetRows)-1)

	for i, raw := range sheetRows[1:] {
		rowNumber := i + 2
		if isBlankRow(raw) {
			continue
		}

		row := importRow{
			RowNumber: rowNumber,
			ScoutName: strings.TrimSpace(cell(raw, colScout)),
			Notes:     strings.TrimSpace(cell(raw, colNotes)),
		}

		sectionRaw := strings.ToLower(strings.TrimSpace(cell(raw, colSection)))
		section, err := enums.ParseSection(sectionRaw)
		if err != nil {
			violations = multierr.Append(violations, fmt.Errorf("row %d: %w", rowNumber, err))
		} else {
			row.Section = section
		}

		row.Start, err = parseTicketNumber(cell(raw, colStart))
		if err != nil {
			violations = multierr.Append(violations, fmt.Errorf("row %d: start number: %w", rowNumber, err))
		}
		row.End, err = parseTicketNumber(cell(raw, colEnd))
		if err != nil {
			violations = multierr.Append(violations, fmt.Errorf("row %d: end number: %w", rowNumber, err))
		}
		if row.Start > 0 && row.End > 0 && row.End < row.Start {
			violations = multierr.Append(violations,
				fmt.Errorf("row %d: end number %d precedes start number %d", rowNumber, row.End, row.Start))
		}

		rows = append(rows, row)
	}

	violations = multierr.Append(violations, overlapViolations(rows))
	if violations != nil {
		return nil, violations
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook has no data rows")
	}
	return rows, nil
}

// overlapViolations reports every pair of rows whose ticket ranges collide.
func overlapViolations(rows []importRow) error {
	sorted := make([]importRow, 0, len(rows))
	for _, row := range rows {
		if row.Start > 0 && row.End >= row.Start {
			sorted = append(sorted, row)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var violations error
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if curr.Start <= prev.End {
			violations = multierr.Append(violations,
				fmt.Errorf("row %d: range [%d, %d] overlaps row %d range [%d, %d]",
					curr.RowNumber, curr.Start, curr.End, prev.RowNumber, prev.Start, prev.End))
		}
	}
	return violations
}

func parseTicketNumber(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("value is required")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", trimmed)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func asImportError(err error, op string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
