package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Window names a quota accounting period.
type Window string

const (
	WindowDaily  Window = "daily"
	WindowWeekly Window = "weekly"
)

func (w Window) Valid() bool {
	return w == WindowDaily || w == WindowWeekly
}

// Scope names what a counter meters within a window. Daily counters are
// scoped per target company; the weekly counter is account-global.
const (
	ScopeCompanyContacts = "company_contacts"
	ScopeTotalContacts   = "total_contacts"
)

// Default ceilings. Per-account overrides live on the counter row itself,
// so changing a limit never rewrites history.
const (
	DefaultDailyCompanyLimit = 5
	DefaultWeeklyTotalLimit  = 50
)

// DailyBucketKey returns the ISO date of the instant in UTC. Counters in
// different buckets never collide, so a new day starts from zero without
// any reset job.
func DailyBucketKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// WeeklyBucketKey returns the ISO date of the most recent Monday (UTC),
// counting Monday itself.
func WeeklyBucketKey(now time.Time) string {
	now = now.UTC()
	offset := (int(now.Weekday()) + 6) % 7
	return now.AddDate(0, 0, -offset).Format("2006-01-02")
}

// QuotaCounter is one usage window for one account. The unique index makes
// concurrent first-touch inserts race safely: the loser re-reads and
// increments.
type QuotaCounter struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"uniqueIndex:idx_quota_counter_window;not null" json:"account_id"`
	Scope     string       `gorm:"uniqueIndex:idx_quota_counter_window;not null" json:"scope"`
	ScopeKey  string       `gorm:"uniqueIndex:idx_quota_counter_window;not null" json:"scope_key"`
	Window    Window       `gorm:"column:window_kind;uniqueIndex:idx_quota_counter_window;not null" json:"window"`
	BucketKey string       `gorm:"uniqueIndex:idx_quota_counter_window;not null" json:"bucket_key"`
	Count     int64        `gorm:"not null;default:0" json:"count"`
	Limit     int64        `gorm:"column:limit_value;not null" json:"limit"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (QuotaCounter) TableName() string {
	return "quota_counters"
}
