package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidEventID   = errors.New("invalid_event_id")
	ErrUnknownEventType = errors.New("unknown_event_type")
	ErrInvalidTier      = errors.New("invalid_tier")
	ErrLedgerNotFound   = errors.New("ledger_not_found")
)

type ApplyEventRequest struct {
	// EventID is the provider's delivery id, expected to be a UUID.
	EventID   string    `json:"event_id"`
	AccountID string    `json:"account_id"`
	Type      EventType `json:"type"`
	// Tier is required for subscription.updated.
	Tier string `json:"tier,omitempty"`
	// ResetDate is optional for cycle.reset; absent means one month out.
	ResetDate *time.Time `json:"reset_date,omitempty"`
}

type ApplyEventResponse struct {
	// Applied is false when the event id was seen before and nothing
	// changed.
	Applied   bool      `json:"applied"`
	Total     int64     `json:"total"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	ResetDate time.Time `json:"reset_date"`
}

type Service interface {
	// ApplyEvent records the delivery and applies its effect to the credit
	// ledger in one transaction. Replayed event ids are acknowledged
	// without touching the ledger.
	ApplyEvent(ctx context.Context, req ApplyEventRequest) (*ApplyEventResponse, error)
}
