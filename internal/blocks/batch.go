package blocks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ricardofaria/raffletrack-backend/pkg/db/models"
	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
	pkgerrors "github.com/ricardofaria/raffletrack-backend/pkg/errors"
)

// Range is an inclusive ticket number range.
type Range struct {
	Start int
	End   int
}

// BatchInput describes a block batch. Exactly one generation mode applies:
// explicit Ranges, or TotalTickets divided into BlockSize chunks.
type BatchInput struct {
	CampaignID   uuid.UUID
	UnitPrice    decimal.Decimal
	BlockPrice   *decimal.Decimal
	Section      *enums.Section
	NamePrefix   string
	Ranges       []Range
	TotalTickets int
	BlockSize    int
}

// GenerateBatch creates the campaign's blocks in one transaction after
// validating that the ranges tile their span with no gaps or overlaps.
func (s *service) GenerateBatch(ctx context.Context, input BatchInput) ([]models.Block, error) {
	if input.CampaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign_id is required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must not be negative")
	}
	if input.BlockPrice != nil && !input.BlockPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "block_price must be positive")
	}
	if input.Section != nil && !input.Section.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid section")
	}

	explicitMode := len(input.Ranges) > 0
	countMode := input.TotalTickets > 0 || input.BlockSize > 0
	if explicitMode == countMode {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide either ranges or total_tickets with block_size")
	}

	ranges := make([]Range, len(input.Ranges))
	copy(ranges, input.Ranges)
	if countMode {
		if input.TotalTickets <= 0 || input.BlockSize <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_tickets and block_size must be positive")
		}
		if input.TotalTickets%input.BlockSize != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("uneven allocation: %d tickets do not divide into blocks of %d", input.TotalTickets, input.BlockSize)).
				WithDetails(map[string]int{"remainder": input.TotalTickets % input.BlockSize})
		}
		for start := 1; start <= input.TotalTickets; start += input.BlockSize {
			ranges = append(ranges, Range{Start: start, End: start + input.BlockSize - 1})
		}
	}

	if err := validateCoverage(ranges); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ranges")
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	if _, err := s.campaigns.FindByID(ctx, input.CampaignID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup campaign")
	}

	spanStart := ranges[0].Start
	spanEnd := ranges[len(ranges)-1].End
	overlaps, err := s.repo.CountOverlapping(ctx, input.CampaignID, spanStart, spanEnd, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check range overlap")
	}
	if overlaps > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "span overlaps existing blocks").
			WithDetails(map[string]int64{"overlapping_blocks": overlaps})
	}

	rows := make([]models.Block, len(ranges))
	for i, rg := range ranges {
		name := fmt.Sprintf("%d-%d", rg.Start, rg.End)
		if input.NamePrefix != "" {
			name = fmt.Sprintf("%s %s", input.NamePrefix, name)
		}
		rows[i] = models.Block{
			CampaignID:  input.CampaignID,
			Name:        name,
			StartNumber: rg.Start,
			EndNumber:   rg.End,
			UnitPrice:   input.UnitPrice,
			BlockPrice:  input.BlockPrice,
			Section:     input.Section,
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateBatch(ctx, rows)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create block batch")
	}
	return rows, nil
}

// validateCoverage checks that the ranges, once sorted, tile their span with
// no gaps and no overlaps. Every violation is collected before failing.
func validateCoverage(ranges []Range) error {
	if len(ranges) == 0 {
		return fmt.Errorf("at least one range is required")
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var err error
	for i, rg := range sorted {
		if rg.Start < 1 {
			err = multierr.Append(err, fmt.Errorf("range [%d,%d]: start must be at least 1", rg.Start, rg.End))
		}
		if rg.End < rg.Start {
			err = multierr.Append(err, fmt.Errorf("range [%d,%d]: end before start", rg.Start, rg.End))
			continue
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		switch {
		case rg.Start <= prev.End:
			err = multierr.Append(err, fmt.Errorf("range [%d,%d] overlaps [%d,%d]", rg.Start, rg.End, prev.Start, prev.End))
		case rg.Start > prev.End+1:
			err = multierr.Append(err, fmt.Errorf("gap between %d and %d", prev.End, rg.Start))
		}
	}
	return err
}
