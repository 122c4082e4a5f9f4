package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is the subscription tier of an account.
type Tier string

const (
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
)

// MonthlyAllotment returns the credit allotment granted each cycle.
func (t Tier) MonthlyAllotment() int64 {
	switch t {
	case TierPro:
		return 1000
	default:
		return 100
	}
}

// Valid reports whether the tier is a known value.
func (t Tier) Valid() bool {
	return t == TierStarter || t == TierPro
}

// Account is a single end user of the prospecting product.
type Account struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Email     string       `json:"email" gorm:"type:text;not null;uniqueIndex:ux_accounts_email"`
	Tier      Tier         `json:"tier" gorm:"type:text;not null;default:'starter'"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
