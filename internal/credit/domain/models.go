package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ActionKind identifies a paid prospecting action.
type ActionKind string

const (
	ActionGenerateLeads     ActionKind = "generate_leads"
	ActionEnrichCompanyFull ActionKind = "enrich_company_full"
	ActionEnrichContact     ActionKind = "enrich_contact"
	ActionScoreLead         ActionKind = "score_lead"
	ActionDraftEmail        ActionKind = "draft_email"

	// ActionRefund only appears on transaction rows; it is not purchasable.
	ActionRefund ActionKind = "refund"
)

// Upper bounds for a single ledger call. They keep the cost arithmetic
// far away from int64 overflow; no legitimate caller batches anywhere
// near this many units.
const (
	MaxDeductQuantity = 10_000
	MaxRefundAmount   = 100_000
)

// perUnitCost is the closed pricing map. Unknown kinds are rejected.
var perUnitCost = map[ActionKind]int64{
	ActionGenerateLeads:     5,
	ActionEnrichCompanyFull: 10,
	ActionEnrichContact:     2,
	ActionScoreLead:         1,
	ActionDraftEmail:        1,
}

// PerUnitCost returns the credit cost of one unit of the action, or false
// for unknown kinds.
func PerUnitCost(kind ActionKind) (int64, bool) {
	cost, ok := perUnitCost[kind]
	return cost, ok
}

// MaxPerUnitCost is the cost of the most expensive action, used to derive
// how many such actions the remaining balance can still afford.
func MaxPerUnitCost() int64 {
	var max int64
	for _, cost := range perUnitCost {
		if cost > max {
			max = cost
		}
	}
	return max
}

// CreditBalance is the single metering record owned by an account.
// remaining is persisted independently of total-used and must never go
// negative; deductions are guarded at the store.
type CreditBalance struct {
	AccountID snowflake.ID `json:"account_id" gorm:"primaryKey;column:account_id"`
	Total     int64        `json:"total" gorm:"not null"`
	Used      int64        `json:"used" gorm:"not null;default:0"`
	Remaining int64        `json:"remaining" gorm:"not null;default:0"`
	ResetDate time.Time    `json:"reset_date" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditBalance) TableName() string { return "credit_balances" }

// CreditTransaction is an immutable audit entry. Cost is positive for
// deductions and negative for refunds.
type CreditTransaction struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID      snowflake.ID `json:"account_id" gorm:"not null;index:ix_credit_transactions_account"`
	ActionKind     ActionKind   `json:"action_kind" gorm:"type:text;not null"`
	Quantity       int          `json:"quantity" gorm:"not null"`
	Cost           int64        `json:"cost" gorm:"not null"`
	RemainingAfter int64        `json:"remaining_after" gorm:"not null"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
