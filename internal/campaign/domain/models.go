package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CampaignStatus string

const (
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
)

// Campaign groups outreach attempts under one account.
type Campaign struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID   `gorm:"index;not null" json:"account_id"`
	Name      string         `gorm:"not null" json:"name"`
	Status    CampaignStatus `gorm:"not null;default:'active'" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}
