package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcome is the recorded result of one outreach attempt.
type Outcome string

const (
	OutcomeUnset              Outcome = "unset"
	OutcomeReplied            Outcome = "replied"
	OutcomeNoResponse         Outcome = "no_response"
	OutcomeUnsubscribed       Outcome = "unsubscribed"
	OutcomeMeetingBooked      Outcome = "meeting_booked"
	OutcomeOpportunityCreated Outcome = "opportunity_created"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeReplied, OutcomeNoResponse, OutcomeUnsubscribed,
		OutcomeMeetingBooked, OutcomeOpportunityCreated:
		return true
	}
	return false
}

// Terminal outcomes lock the record forever. Any non-terminal outcome may
// be overwritten until one of these lands.
func (o Outcome) Terminal() bool {
	return o == OutcomeMeetingBooked || o == OutcomeOpportunityCreated
}

// NoResponseGuardrail is how long after send a no_response write is
// accepted without explicit caller confirmation.
const NoResponseGuardrail = 3 * 24 * time.Hour

// EngagementContact is one contact touched by a campaign, carrying the
// outcome state machine.
type EngagementContact struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID       snowflake.ID `gorm:"index;not null" json:"account_id"`
	CampaignID      snowflake.ID `gorm:"index;not null" json:"campaign_id"`
	ContactName     string       `json:"contact_name"`
	ContactEmail    string       `gorm:"not null" json:"contact_email"`
	CompanyKey      string       `gorm:"index;not null" json:"company_key"`
	Title           string       `json:"title,omitempty"`
	SentAt          *time.Time   `json:"sent_at,omitempty"`
	Outcome         Outcome      `gorm:"not null;default:'unset'" json:"outcome"`
	OutcomeLocked   bool         `gorm:"not null;default:false" json:"outcome_locked"`
	OutcomeLockedAt *time.Time   `json:"outcome_locked_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (EngagementContact) TableName() string {
	return "engagement_contacts"
}

// OutcomeAudit is an informational learning record appended on every
// outcome write. It captures the engagement context at write time and
// plays no part in the locking invariant.
type OutcomeAudit struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID      `gorm:"index;not null" json:"account_id"`
	ContactID snowflake.ID      `gorm:"index;not null" json:"contact_id"`
	Outcome   Outcome           `gorm:"not null" json:"outcome"`
	Context   datatypes.JSONMap `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (OutcomeAudit) TableName() string {
	return "outcome_audits"
}
