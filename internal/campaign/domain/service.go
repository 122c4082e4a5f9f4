package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidContact    = errors.New("invalid_contact")
	ErrCampaignNotFound  = errors.New("campaign_not_found")
	ErrCampaignNotActive = errors.New("campaign_not_active")
)

type CreateRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

type CreateResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// QueueContactRequest queues one outreach send. Consuming quota and
// recording the engagement row happen in one unit: a denied quota leaves
// no contact behind.
type QueueContactRequest struct {
	AccountID    string `json:"account_id"`
	CampaignID   string `json:"campaign_id"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	CompanyKey   string `json:"company_key"`
	Title        string `json:"title,omitempty"`
}

type QueueContactResponse struct {
	ContactID  string    `json:"contact_id"`
	SentAt     time.Time `json:"sent_at"`
	DailyUsed  int64     `json:"daily_used"`
	WeeklyUsed int64     `json:"weekly_used"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	// QueueContact checks the daily and weekly quotas and, if both admit
	// the send, records the engagement contact with its sent_at stamp.
	QueueContact(ctx context.Context, req QueueContactRequest) (*QueueContactResponse, error)
}
