package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ricardofaria/raffletrack-backend/pkg/enums"
)

// Scout is a troop member who can be assigned raffle blocks. Names are
// unique case-insensitively (enforced via a lower(name) unique index).
type Scout struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     *string        `gorm:"column:email"`
	Phone     *string        `gorm:"column:phone"`
	Section   *enums.Section `gorm:"column:section;type:section_enum"`
	Active    bool           `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
