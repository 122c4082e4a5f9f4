package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrInvalidCursor     = errors.New("invalid_cursor")
	ErrUnknownActionType = errors.New("unknown_action_type")
)

type AdjustRequest struct {
	AccountID  string     `json:"account_id"`
	ActionType ActionType `json:"action_type"`
	SubjectRef string     `json:"subject_ref,omitempty"`
}

type AdjustResponse struct {
	TitleMatch    int64 `json:"title_match"`
	IndustryMatch int64 `json:"industry_match"`
	CompanySize   int64 `json:"company_size"`
	Version       int64 `json:"version"`
}

type CurrentResponse struct {
	TitleMatch    int64 `json:"title_match"`
	IndustryMatch int64 `json:"industry_match"`
	CompanySize   int64 `json:"company_size"`
	Version       int64 `json:"version"`
}

type HistoryEntry struct {
	VersionNumber int64      `json:"version_number"`
	TitleMatch    int64      `json:"title_match"`
	IndustryMatch int64      `json:"industry_match"`
	CompanySize   int64      `json:"company_size"`
	ActionType    ActionType `json:"action_type"`
	SubjectRef    string     `json:"subject_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type HistoryRequest struct {
	AccountID string `json:"account_id"`
	PageSize  int    `json:"page_size,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}

type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	HasMore bool           `json:"has_more"`
	Cursor  string         `json:"cursor,omitempty"`
}

type Service interface {
	// Adjust atomically applies a feedback event's delta to every
	// dimension, clamps, bumps the version and appends a history record.
	Adjust(ctx context.Context, req AdjustRequest) (*AdjustResponse, error)
	// GetCurrent returns the live vector, or the defaults for an account
	// that has never adjusted. Defaults are the expected state for a new
	// account, not an error.
	GetCurrent(ctx context.Context, accountID string) (*CurrentResponse, error)
	// GetHistory lists weight versions oldest first.
	GetHistory(ctx context.Context, req HistoryRequest) (*HistoryResponse, error)
}
