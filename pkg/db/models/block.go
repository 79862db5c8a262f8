package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
)

// Block is a contiguous, inclusive range of ticket numbers belonging to a
// campaign. Assignment to a scout is optional; the block's lifecycle state is
// always derived from its assignment and ledger activity, never stored.
type Block struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID  uuid.UUID        `gorm:"column:campaign_id;type:uuid;not null;index"`
	Name        string           `gorm:"column:name;not null"`
	StartNumber int              `gorm:"column:start_number;not null"`
	EndNumber   int              `gorm:"column:end_number;not null"`
	UnitPrice   decimal.Decimal  `gorm:"column:unit_price;type:numeric(10,2);not null"`
	BlockPrice  *decimal.Decimal `gorm:"column:block_price;type:numeric(10,2)"`
	Section     *enums.Section   `gorm:"column:section;type:section_enum"`
	ScoutID     *uuid.UUID       `gorm:"column:scout_id;type:uuid;index"`
	AssignedAt  *time.Time       `gorm:"column:assigned_at"`
	Notes       *string          `gorm:"column:notes"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TicketCount returns the number of tickets in the inclusive range.
func (b Block) TicketCount() int {
	return b.EndNumber - b.StartNumber + 1
}

// ExpectedTotal is the amount the block should raise. A fixed block price,
// when set, overrides the per-ticket calculation.
func (b Block) ExpectedTotal() decimal.Decimal {
	if b.BlockPrice != nil {
		return *b.BlockPrice
	}
	return b.UnitPrice.Mul(decimal.NewFromInt(int64(b.TicketCount())))
}
