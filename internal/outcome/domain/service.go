package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidContact  = errors.New("invalid_contact")
	ErrContactNotFound = errors.New("contact_not_found")
	ErrUnknownOutcome  = errors.New("unknown_outcome")
	ErrOutcomeLocked   = errors.New("outcome_locked")
	ErrEarlyNoResponse = errors.New("early_no_response")
)

type SetOutcomeRequest struct {
	AccountID string  `json:"account_id"`
	ContactID string  `json:"contact_id"`
	Outcome   Outcome `json:"outcome"`
	// Confirm overrides the early no_response guardrail. It has no effect
	// on any other outcome.
	Confirm bool `json:"confirm,omitempty"`
}

type SetOutcomeResponse struct {
	ContactID string     `json:"contact_id"`
	Outcome   Outcome    `json:"outcome"`
	Locked    bool       `json:"locked"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
}

type Service interface {
	// SetOutcome writes an outcome onto a contact. Terminal outcomes lock
	// the record permanently; once locked every write is rejected with
	// ErrOutcomeLocked, including a re-write of the same terminal value.
	SetOutcome(ctx context.Context, req SetOutcomeRequest) (*SetOutcomeResponse, error)
	// GetContact returns the contact record, scoped to the owning account.
	GetContact(ctx context.Context, accountID, contactID string) (*EngagementContact, error)
}
