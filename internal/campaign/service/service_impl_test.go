package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	"github.com/leadrail/leadrail/internal/clock"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	quotaservice "github.com/leadrail/leadrail/internal/quota/service"
	dbpkg "github.com/leadrail/leadrail/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&campaigndomain.Campaign{},
		&outcomedomain.EngagementContact{},
		&quotadomain.QuotaCounter{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC))
	quota := quotaservice.New(quotaservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc})
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc, Quota: quota}).(*Service)

	return svc, node.Generate().String()
}

func createCampaign(t *testing.T, svc *Service, accountID string) string {
	t.Helper()
	resp, err := svc.Create(context.Background(), campaigndomain.CreateRequest{
		AccountID: accountID,
		Name:      "Q1 outbound",
	})
	require.NoError(t, err)
	return resp.ID
}

func TestQueueContactRecordsSendAndQuota(t *testing.T) {
	svc, accountID := newTestService(t)
	campaignID := createCampaign(t, svc, accountID)

	resp, err := svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
		AccountID:    accountID,
		CampaignID:   campaignID,
		ContactName:  "Ola Berg",
		ContactEmail: "Ola.Berg@Acme.example",
		CompanyKey:   "Acme",
		Title:        "Head of Sales",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.DailyUsed)
	assert.Equal(t, int64(1), resp.WeeklyUsed)
	assert.False(t, resp.SentAt.IsZero())

	var contact outcomedomain.EngagementContact
	require.NoError(t, svc.db.First(&contact, "account_id = ?", accountID).Error)
	assert.Equal(t, "ola.berg@acme.example", contact.ContactEmail)
	assert.Equal(t, "acme", contact.CompanyKey)
	assert.Equal(t, outcomedomain.OutcomeUnset, contact.Outcome)
	require.NotNil(t, contact.SentAt)
}

func TestQueueContactDeniedQuotaLeavesNoContact(t *testing.T) {
	svc, accountID := newTestService(t)
	campaignID := createCampaign(t, svc, accountID)

	for i := 0; i < 5; i++ {
		_, err := svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
			AccountID:    accountID,
			CampaignID:   campaignID,
			ContactEmail: "lead@acme.example",
			CompanyKey:   "acme",
		})
		require.NoError(t, err)
	}

	_, err := svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
		AccountID:    accountID,
		CampaignID:   campaignID,
		ContactEmail: "lead@acme.example",
		CompanyKey:   "acme",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)

	var count int64
	require.NoError(t, svc.db.Model(&outcomedomain.EngagementContact{}).
		Where("account_id = ?", accountID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestQueueContactFailedInsertReleasesQuota(t *testing.T) {
	svc, accountID := newTestService(t)
	campaignID := createCampaign(t, svc, accountID)

	// Force the contact INSERT to fail after the quota spend.
	require.NoError(t, svc.db.Migrator().DropTable(&outcomedomain.EngagementContact{}))

	_, err := svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
		AccountID:    accountID,
		CampaignID:   campaignID,
		ContactEmail: "ola.berg@acme.example",
		CompanyKey:   "acme",
	})
	require.Error(t, err)

	peek, err := svc.quota.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), peek.DailyUsed)
	assert.Equal(t, int64(0), peek.WeeklyUsed)
}

func TestQueueContactRequiresActiveCampaign(t *testing.T) {
	svc, accountID := newTestService(t)
	campaignID := createCampaign(t, svc, accountID)

	require.NoError(t, svc.db.Model(&campaigndomain.Campaign{}).
		Where("id = ?", campaignID).
		Update("status", campaigndomain.CampaignPaused).Error)

	_, err := svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
		AccountID:    accountID,
		CampaignID:   campaignID,
		ContactEmail: "lead@acme.example",
		CompanyKey:   "acme",
	})
	assert.ErrorIs(t, err, campaigndomain.ErrCampaignNotActive)
}

func TestQueueContactUnknownCampaign(t *testing.T) {
	svc, accountID := newTestService(t)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	_, err = svc.QueueContact(context.Background(), campaigndomain.QueueContactRequest{
		AccountID:    accountID,
		CampaignID:   node.Generate().String(),
		ContactEmail: "lead@acme.example",
		CompanyKey:   "acme",
	})
	assert.ErrorIs(t, err, campaigndomain.ErrCampaignNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc, accountID := newTestService(t)

	_, err := svc.Create(context.Background(), campaigndomain.CreateRequest{
		AccountID: accountID,
		Name:      "   ",
	})
	assert.ErrorIs(t, err, campaigndomain.ErrInvalidName)
}
