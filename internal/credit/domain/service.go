package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadrail/leadrail/pkg/db/pagination"
)

type Service interface {
	Deduct(ctx context.Context, req DeductRequest) (*DeductResponse, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	GetBalance(ctx context.Context, accountID string) (*BalanceResponse, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

type DeductRequest struct {
	AccountID  string     `json:"account_id"`
	ActionKind ActionKind `json:"action_kind"`
	Quantity   int        `json:"quantity"`
}

type DeductResponse struct {
	Cost      int64 `json:"cost"`
	Remaining int64 `json:"remaining"`
}

type RefundRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

type RefundResponse struct {
	Remaining int64 `json:"remaining"`
}

type BalanceResponse struct {
	Total     int64     `json:"total"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	ResetDate time.Time `json:"reset_date"`

	// AffordableMostExpensive is how many of the priciest action the
	// remaining balance still covers.
	AffordableMostExpensive int64 `json:"affordable_most_expensive"`
}

type ListTransactionsRequest struct {
	AccountID string `json:"account_id"`
	PageToken string `json:"page_token"`
	PageSize  int    `json:"page_size"`
}

type ListTransactionsResponse struct {
	Transactions []CreditTransaction `json:"transactions"`
	PageInfo     pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrUnknownActionKind    = errors.New("unknown_action_kind")
	ErrInsufficientCredits  = errors.New("insufficient_credits")
	ErrLedgerNotInitialized = errors.New("ledger_not_initialized")
)

// InsufficientCreditsError reports the shortfall of a rejected deduction.
// It unwraps to ErrInsufficientCredits so callers can match with errors.Is.
type InsufficientCreditsError struct {
	Remaining int64
	Required  int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: remaining=%d required=%d", e.Remaining, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }
