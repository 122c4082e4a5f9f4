package domain

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidScope   = errors.New("invalid_scope")
	ErrInvalidWindow  = errors.New("invalid_window")
	ErrInvalidLimit   = errors.New("invalid_limit")
	ErrQuotaExceeded  = errors.New("quota_exceeded")
)

// QuotaExceededError carries the counter state at the moment of denial so
// callers can tell the user how much of the window is gone.
type QuotaExceededError struct {
	Window Window
	Used   int64
	Limit  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d of %d used in %s window", e.Used, e.Limit, e.Window)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

type ConsumeRequest struct {
	AccountID string `json:"account_id"`
	// CompanyKey identifies the target company for the daily per-company
	// counter. Required; the weekly account-wide counter needs no key.
	CompanyKey string `json:"company_key"`
}

type ConsumeResponse struct {
	DailyUsed   int64 `json:"daily_used"`
	DailyLimit  int64 `json:"daily_limit"`
	WeeklyUsed  int64 `json:"weekly_used"`
	WeeklyLimit int64 `json:"weekly_limit"`
}

// IncrementRequest addresses one counter directly. Consume is the
// composite most callers want; this is the single-bucket primitive for
// callers that manage their own scopes and limits.
type IncrementRequest struct {
	AccountID string `json:"account_id"`
	Scope     string `json:"scope"`
	ScopeKey  string `json:"scope_key"`
	Window    Window `json:"window"`
	Limit     int64  `json:"limit"`
}

type IncrementResponse struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

type PeekRequest struct {
	AccountID  string `json:"account_id"`
	CompanyKey string `json:"company_key"`
}

type PeekResponse struct {
	DailyUsed   int64 `json:"daily_used"`
	DailyLimit  int64 `json:"daily_limit"`
	WeeklyUsed  int64 `json:"weekly_used"`
	WeeklyLimit int64 `json:"weekly_limit"`
}

type Service interface {
	// Consume atomically checks and increments both the daily per-company
	// counter and the weekly account counter. Either both advance or
	// neither does.
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResponse, error)
	// ConsumeWithin is Consume running on the caller's transaction handle,
	// so a caller can make the quota spend and its own writes one atomic
	// unit. A rollback of the outer transaction releases the slot.
	ConsumeWithin(ctx context.Context, tx *gorm.DB, req ConsumeRequest) (*ConsumeResponse, error)
	// CheckAndIncrement checks and advances a single counter: denial when
	// the bucket is at its limit, otherwise an atomic increment.
	CheckAndIncrement(ctx context.Context, req IncrementRequest) (*IncrementResponse, error)
	// Peek reports current usage without consuming anything.
	Peek(ctx context.Context, req PeekRequest) (*PeekResponse, error)
}
