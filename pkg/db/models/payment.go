package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
)

// Payment records money handed in against a block, optionally together with
// the counterfoil stubs delivered at the same time.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BlockID          uuid.UUID           `gorm:"column:block_id;type:uuid;not null;index"`
	AmountPaid       decimal.Decimal     `gorm:"column:amount_paid;type:numeric(10,2);not null"`
	TicketCount      int                 `gorm:"column:ticket_count;not null;default:0"`
	StubsDelivered   int                 `gorm:"column:stubs_delivered;not null;default:0"`
	StubsExpected    int                 `gorm:"column:stubs_expected;not null;default:0"`
	Method           enums.PaymentMethod `gorm:"column:method;type:payment_method_enum;not null"`
	Reference        *string             `gorm:"column:reference"`
	Notes            *string             `gorm:"column:notes"`
	StubNotes        *string             `gorm:"column:stub_notes"`
	PaidAt           time.Time           `gorm:"column:paid_at;not null"`
	StubsDeliveredAt *time.Time          `gorm:"column:stubs_delivered_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}
