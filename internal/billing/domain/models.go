package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventCycleReset          EventType = "cycle.reset"
)

func (t EventType) Valid() bool {
	return t == EventSubscriptionUpdated || t == EventCycleReset
}

// BillingEvent is one received webhook delivery. EventID is the provider's
// idempotency key; the unique index makes replays collapse to a no-op.
type BillingEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	EventID   string            `gorm:"uniqueIndex;not null" json:"event_id"`
	AccountID snowflake.ID      `gorm:"index;not null" json:"account_id"`
	Type      EventType         `gorm:"not null" json:"type"`
	Payload   datatypes.JSONMap `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (BillingEvent) TableName() string {
	return "billing_events"
}
