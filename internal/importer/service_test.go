package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/pkg/config"
	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

type fakeRepository struct {
	campaign         *models.Campaign
	scoutsByName     map[string]*models.Scout
	createdScouts    []models.Scout
	createdBlocks    []models.Block
	existingBlocks   []models.Block
	overlappingCount int64
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if f.campaign == nil || f.campaign.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.campaign, nil
}

func (f *fakeRepository) FindScoutByName(ctx context.Context, name string) (*models.Scout, error) {
	if scout, ok := f.scoutsByName[strings.ToLower(name)]; ok {
		return scout, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindScoutByID(ctx context.Context, id uuid.UUID) (*models.Scout, error) {
	for _, scout := range f.scoutsByName {
		if scout.ID == id {
			return scout, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateScout(ctx context.Context, scout *models.Scout) (*models.Scout, error) {
	scout.ID = uuid.New()
	f.createdScouts = append(f.createdScouts, *scout)
	if f.scoutsByName == nil {
		f.scoutsByName = map[string]*models.Scout{}
	}
	f.scoutsByName[strings.ToLower(scout.Name)] = scout
	return scout, nil
}

func (f *fakeRepository) CreateBlocks(ctx context.Context, rows []models.Block) error {
	f.createdBlocks = append(f.createdBlocks, rows...)
	return nil
}

func (f *fakeRepository) CountOverlapping(ctx context.Context, campaignID uuid.UUID, start, end int) (int64, error) {
	return f.overlappingCount, nil
}

func (f *fakeRepository) ListBlocksByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Block, error) {
	return f.existingBlocks, nil
}

type fakeLedger struct {
	totals map[uuid.UUID]ledger.BlockTotals
}

func (f *fakeLedger) CampaignTotals(ctx context.Context, campaignID uuid.UUID) (map[uuid.UUID]ledger.BlockTotals, error) {
	return f.totals, nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testConfig() config.ImportConfig {
	return config.ImportConfig{MaxRows: 2000, MaxUploadMB: 10, SheetNameBlocks: "Blocks"}
}

func buildWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	header := []any{"Section", "Scout", "Start", "End", "Notes"}
	all := append([][]any{header}, rows...)
	for i, row := range all {
		for col, value := range row {
			cellName, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cellName, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func newTestService(t *testing.T, repo *fakeRepository, store *fakeLedger) Service {
	t.Helper()
	svc, err := NewService(repo, store, &fakeTxRunner{}, testConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
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

func TestImportBlocksCreatesScoutsAndBlocks(t *testing.T) {
	repo := &fakeRepository{campaign: &models.Campaign{ID: uuid.New(), Name: "Natal 2025"}}
	svc := newTestService(t, repo, &fakeLedger{})

	reader := buildWorkbook(t, "Blocks", [][]any{
		{"reserva", "", 1, 10, ""},
		{"lobitos", "Lea Granja", 181, 190, ""},
		{"exploradores", "Afonso Silva", 421, 430, "entregue 19/11"},
		{"exploradores", "AFONSO SILVA", 431, 440, ""},
	})

	result, err := svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: repo.campaign.ID,
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if err != nil {
		t.Fatalf("ImportBlocks: %v", err)
	}

	if result.ScoutsCreated != 2 {
		t.Fatalf("scouts created = %d, want 2 (case-insensitive dedupe)", result.ScoutsCreated)
	}
	if result.BlocksCreated != 4 {
		t.Fatalf("blocks created = %d, want 4", result.BlocksCreated)
	}
	if result.RowsProcessed != 4 {
		t.Fatalf("rows processed = %d, want 4", result.RowsProcessed)
	}

	if len(repo.createdBlocks) != 4 {
		t.Fatalf("expected 4 inserted blocks, got %d", len(repo.createdBlocks))
	}
	reserve := repo.createdBlocks[0]
	if reserve.ScoutID != nil || reserve.AssignedAt != nil {
		t.Fatalf("reserve block must stay unassigned")
	}
	if reserve.Name != "1-10" {
		t.Fatalf("block name = %q, want 1-10", reserve.Name)
	}
	if reserve.Section == nil || *reserve.Section != enums.SectionReserva {
		t.Fatalf("reserve block section = %v, want reserva", reserve.Section)
	}

	assigned := repo.createdBlocks[2]
	if assigned.ScoutID == nil || assigned.AssignedAt == nil {
		t.Fatalf("scout block must be assigned with timestamp")
	}
	if assigned.Notes == nil || *assigned.Notes != "entregue 19/11" {
		t.Fatalf("notes not carried over: %v", assigned.Notes)
	}

	// Both Afonso rows must point at the same scout.
	if *repo.createdBlocks[2].ScoutID != *repo.createdBlocks[3].ScoutID {
		t.Fatalf("case variants of the same scout got different ids")
	}
}

func TestImportBlocksReusesExistingScouts(t *testing.T) {
	existing := &models.Scout{ID: uuid.New(), Name: "Lea Granja", Active: true}
	repo := &fakeRepository{
		campaign:     &models.Campaign{ID: uuid.New(), Name: "Natal 2025"},
		scoutsByName: map[string]*models.Scout{"lea granja": existing},
	}
	svc := newTestService(t, repo, &fakeLedger{})

	reader := buildWorkbook(t, "Blocks", [][]any{
		{"lobitos", "LEA GRANJA", 181, 190, ""},
	})

	result, err := svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: repo.campaign.ID,
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if err != nil {
		t.Fatalf("ImportBlocks: %v", err)
	}
	if result.ScoutsCreated != 0 {
		t.Fatalf("scouts created = %d, want 0", result.ScoutsCreated)
	}
	if *repo.createdBlocks[0].ScoutID != existing.ID {
		t.Fatalf("block not linked to the existing scout")
	}
}

func TestImportBlocksCollectsRowViolations(t *testing.T) {
	repo := &fakeRepository{campaign: &models.Campaign{ID: uuid.New()}}
	svc := newTestService(t, repo, &fakeLedger{})

	reader := buildWorkbook(t, "Blocks", [][]any{
		{"castores", "Someone", 1, 10, ""},
		{"lobitos", "Someone Else", 30, 21, ""},
		{"pioneiros", "Third", 40, 50, ""},
		{"pioneiros", "Fourth", 45, 55, ""},
	})

	_, err := svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: repo.campaign.ID,
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	msg := err.Error()
	for _, want := range []string{"row 2", "row 3", "row 5", "invalid section", "precedes", "overlaps"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
	if len(repo.createdBlocks) != 0 || len(repo.createdScouts) != 0 {
		t.Fatalf("nothing may be written when the workbook is invalid")
	}
}

func TestImportBlocksRejectsOverlapWithExisting(t *testing.T) {
	repo := &fakeRepository{
		campaign:         &models.Campaign{ID: uuid.New()},
		overlappingCount: 1,
	}
	svc := newTestService(t, repo, &fakeLedger{})

	reader := buildWorkbook(t, "Blocks", [][]any{
		{"lobitos", "Someone", 1, 10, ""},
	})

	_, err := svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: repo.campaign.ID,
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if codeOf(t, err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.createdBlocks) != 0 {
		t.Fatalf("no blocks may be written on rejection")
	}
}

func TestImportBlocksEnforcesRowLimit(t *testing.T) {
	repo := &fakeRepository{campaign: &models.Campaign{ID: uuid.New()}}
	svc, err := NewService(repo, &fakeLedger{}, &fakeTxRunner{},
		config.ImportConfig{MaxRows: 2, SheetNameBlocks: "Blocks"})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	rows := make([][]any, 3)
	for i := range rows {
		rows[i] = []any{"lobitos", "", i*10 + 1, i*10 + 10, ""}
	}
	reader := buildWorkbook(t, "Blocks", rows)

	_, err = svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: repo.campaign.ID,
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if codeOf(t, err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for row limit, got %v", err)
	}
	if !strings.Contains(err.Error(), "limit is 2") {
		t.Fatalf("error should name the limit: %v", err)
	}
}

func TestImportBlocksUnknownCampaign(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeLedger{})

	reader := buildWorkbook(t, "Blocks", [][]any{
		{"lobitos", "Someone", 1, 10, ""},
	})

	_, err := svc.ImportBlocks(context.Background(), ImportInput{
		CampaignID: uuid.New(),
		UnitPrice:  decimal.RequireFromString("1.00"),
		Reader:     reader,
	})
	if codeOf(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportBlocksWritesReconciliationColumns(t *testing.T) {
	campaign := &models.Campaign{ID: uuid.New(), Name: "Natal 2025"}
	scout := &models.Scout{ID: uuid.New(), Name: "Afonso Silva", Active: true}
	section := enums.SectionExploradores

	block := models.Block{
		ID:          uuid.New(),
		CampaignID:  campaign.ID,
		Name:        "421-430",
		StartNumber: 421,
		EndNumber:   430,
		UnitPrice:   decimal.RequireFromString("1.00"),
		Section:     &section,
		ScoutID:     &scout.ID,
	}

	repo := &fakeRepository{
		campaign:       campaign,
		scoutsByName:   map[string]*models.Scout{"afonso silva": scout},
		existingBlocks: []models.Block{block},
	}
	store := &fakeLedger{totals: map[uuid.UUID]ledger.BlockTotals{
		block.ID: {
			AmountPaid:      decimal.RequireFromString("6.00"),
			TicketsReported: 6,
			StubsDelivered:  4,
		},
	}}
	svc := newTestService(t, repo, store)

	workbook, err := svc.ExportBlocks(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("ExportBlocks: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Blocks")
	if err != nil {
		t.Fatalf("read exported sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}

	if rows[0][0] != "Block" || rows[0][len(exportHeader)-1] != "State" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	got := rows[1]
	want := []string{
		"421-430", "exploradores", "Afonso Silva",
		"421", "430", "10",
		"10.00", "6.00", "4.00",
		"4", "2", "0",
		"partially_settled", "assigned",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d (%s) = %q, want %q", i, exportHeader[i], got[i], want[i])
		}
	}
}
