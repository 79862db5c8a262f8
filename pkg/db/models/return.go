package models

import (
	"time"

	"github.com/google/uuid"
)

// Return records unsold tickets handed back from an assigned block. Returned
// tickets reduce the block's expected total but never reopen the range for
// reassignment.
type Return struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BlockID    uuid.UUID  `gorm:"column:block_id;type:uuid;not null;index"`
	ScoutID    uuid.UUID  `gorm:"column:scout_id;type:uuid;not null;index"`
	Quantity   int        `gorm:"column:quantity;not null"`
	Reason     *string    `gorm:"column:reason"`
	ReturnedAt time.Time  `gorm:"column:returned_at;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
