package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Weight bounds and starting values. Every dimension lives in
// [WeightMin, WeightMax].
const (
	WeightMin = 0
	WeightMax = 50

	DefaultTitleMatch    = 30
	DefaultIndustryMatch = 20
	DefaultCompanySize   = 10
)

// ActionType is a labeled feedback event that nudges the weight vector.
type ActionType string

const (
	ActionAcceptContact          ActionType = "accept_contact"
	ActionRejectContact          ActionType = "reject_contact"
	ActionLeadAccuracyAccurate   ActionType = "lead_accuracy_accurate"
	ActionLeadAccuracyInaccurate ActionType = "lead_accuracy_inaccurate"
)

// The same signed delta is applied to every dimension. This is deliberate:
// one scalar keeps the model trivially explainable, at the cost of not
// learning per-dimension importance.
var actionDeltas = map[ActionType]int64{
	ActionAcceptContact:          2,
	ActionRejectContact:          -1,
	ActionLeadAccuracyAccurate:   1,
	ActionLeadAccuracyInaccurate: -3,
}

func Delta(t ActionType) (int64, bool) {
	d, ok := actionDeltas[t]
	return d, ok
}

// WeightVector is the current per-account preference state. Version counts
// applied adjustments; it doubles as the optimistic-concurrency token.
type WeightVector struct {
	AccountID     snowflake.ID `gorm:"primaryKey" json:"account_id"`
	TitleMatch    int64        `gorm:"not null" json:"title_match"`
	IndustryMatch int64        `gorm:"not null" json:"industry_match"`
	CompanySize   int64        `gorm:"not null" json:"company_size"`
	Version       int64        `gorm:"not null;default:0" json:"version"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (WeightVector) TableName() string {
	return "weight_vectors"
}

// DefaultWeightVector returns the documented starting state for an account
// with no prior record.
func DefaultWeightVector(accountID snowflake.ID) WeightVector {
	return WeightVector{
		AccountID:     accountID,
		TitleMatch:    DefaultTitleMatch,
		IndustryMatch: DefaultIndustryMatch,
		CompanySize:   DefaultCompanySize,
	}
}

// WeightVersion is one appended history record. The unique index on
// (account_id, version_number) turns concurrent adjustments into a
// duplicate-key conflict instead of a silently lost version.
type WeightVersion struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID `gorm:"uniqueIndex:idx_weight_version;not null" json:"account_id"`
	VersionNumber int64        `gorm:"uniqueIndex:idx_weight_version;not null" json:"version_number"`
	TitleMatch    int64        `gorm:"not null" json:"title_match"`
	IndustryMatch int64        `gorm:"not null" json:"industry_match"`
	CompanySize   int64        `gorm:"not null" json:"company_size"`
	ActionType    ActionType   `gorm:"not null" json:"action_type"`
	SubjectRef    string       `json:"subject_ref,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (WeightVersion) TableName() string {
	return "weight_versions"
}

func clamp(v int64) int64 {
	if v < WeightMin {
		return WeightMin
	}
	if v > WeightMax {
		return WeightMax
	}
	return v
}

// Apply returns the vector after adding delta to every dimension and
// clamping each back into bounds.
func (v WeightVector) Apply(delta int64) WeightVector {
	v.TitleMatch = clamp(v.TitleMatch + delta)
	v.IndustryMatch = clamp(v.IndustryMatch + delta)
	v.CompanySize = clamp(v.CompanySize + delta)
	return v
}
