package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/leadrail/leadrail/internal/clock"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	dbpkg "github.com/leadrail/leadrail/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc       *Service
	clock     *clock.FakeClock
	accountID snowflake.ID
	contactID snowflake.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&outcomedomain.EngagementContact{},
		&outcomedomain.OutcomeAudit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc}).(*Service)

	accountID := node.Generate()
	contactID := node.Generate()
	sentAt := fc.Now().Add(-7 * 24 * time.Hour)
	require.NoError(t, db.Create(&outcomedomain.EngagementContact{
		ID:           contactID,
		AccountID:    accountID,
		CampaignID:   node.Generate(),
		ContactName:  "Dana Vargas",
		ContactEmail: "dana@acme.example",
		CompanyKey:   "acme",
		Title:        "VP Engineering",
		SentAt:       &sentAt,
		Outcome:      outcomedomain.OutcomeUnset,
		CreatedAt:    sentAt,
		UpdatedAt:    sentAt,
	}).Error)

	return fixture{svc: svc, clock: fc, accountID: accountID, contactID: contactID}
}

func (f fixture) set(t *testing.T, outcome outcomedomain.Outcome, confirm bool) (*outcomedomain.SetOutcomeResponse, error) {
	t.Helper()
	return f.svc.SetOutcome(context.Background(), outcomedomain.SetOutcomeRequest{
		AccountID: f.accountID.String(),
		ContactID: f.contactID.String(),
		Outcome:   outcome,
		Confirm:   confirm,
	})
}

func TestSetOutcomeNonTerminalStaysChangeable(t *testing.T) {
	f := newFixture(t)

	resp, err := f.set(t, outcomedomain.OutcomeReplied, false)
	require.NoError(t, err)
	assert.False(t, resp.Locked)

	resp, err = f.set(t, outcomedomain.OutcomeUnsubscribed, false)
	require.NoError(t, err)
	assert.False(t, resp.Locked)
	assert.Equal(t, outcomedomain.OutcomeUnsubscribed, resp.Outcome)
}

func TestSetOutcomeTerminalLocksForever(t *testing.T) {
	f := newFixture(t)

	resp, err := f.set(t, outcomedomain.OutcomeMeetingBooked, false)
	require.NoError(t, err)
	assert.True(t, resp.Locked)
	require.NotNil(t, resp.LockedAt)

	// Every later write is rejected, including the same terminal value.
	for _, next := range []outcomedomain.Outcome{
		outcomedomain.OutcomeMeetingBooked,
		outcomedomain.OutcomeOpportunityCreated,
		outcomedomain.OutcomeReplied,
	} {
		_, err := f.set(t, next, false)
		assert.ErrorIs(t, err, outcomedomain.ErrOutcomeLocked)
	}

	contact, err := f.svc.GetContact(context.Background(), f.accountID.String(), f.contactID.String())
	require.NoError(t, err)
	assert.Equal(t, outcomedomain.OutcomeMeetingBooked, contact.Outcome)
	assert.True(t, contact.OutcomeLocked)
}

func TestSetOutcomeConcurrentTerminalWrites(t *testing.T) {
	f := newFixture(t)

	// One connection keeps both goroutines on the same in-memory database;
	// the guarded UPDATE still decides the winner.
	sqlDB, err := f.svc.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.set(t, outcomedomain.OutcomeMeetingBooked, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, locked int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, outcomedomain.ErrOutcomeLocked)
		locked++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, locked)

	// Only the winner left an audit trail.
	var audits int64
	require.NoError(t, f.svc.db.Model(&outcomedomain.OutcomeAudit{}).
		Where("contact_id = ?", f.contactID).Count(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestSetOutcomeRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.set(t, "ghosted", false)
	assert.ErrorIs(t, err, outcomedomain.ErrUnknownOutcome)

	// unset is the zero state, not a writable outcome.
	_, err = f.set(t, outcomedomain.OutcomeUnset, false)
	assert.ErrorIs(t, err, outcomedomain.ErrUnknownOutcome)
}

func TestSetOutcomeEarlyNoResponseGuardrail(t *testing.T) {
	f := newFixture(t)

	// Move the clock to one day after send.
	f.clock.Set(time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC))

	_, err := f.set(t, outcomedomain.OutcomeNoResponse, false)
	assert.ErrorIs(t, err, outcomedomain.ErrEarlyNoResponse)

	// A confirmed write goes through.
	resp, err := f.set(t, outcomedomain.OutcomeNoResponse, true)
	require.NoError(t, err)
	assert.Equal(t, outcomedomain.OutcomeNoResponse, resp.Outcome)
}

func TestSetOutcomeNoResponseAfterGuardrailWindow(t *testing.T) {
	f := newFixture(t)

	// Fixture sent seven days ago; no confirmation needed.
	resp, err := f.set(t, outcomedomain.OutcomeNoResponse, false)
	require.NoError(t, err)
	assert.Equal(t, outcomedomain.OutcomeNoResponse, resp.Outcome)
}

func TestSetOutcomeAppendsAudit(t *testing.T) {
	f := newFixture(t)

	_, err := f.set(t, outcomedomain.OutcomeReplied, false)
	require.NoError(t, err)
	_, err = f.set(t, outcomedomain.OutcomeOpportunityCreated, false)
	require.NoError(t, err)

	var audits []outcomedomain.OutcomeAudit
	require.NoError(t, f.svc.db.Order("created_at ASC").
		Find(&audits, "contact_id = ?", f.contactID).Error)
	require.Len(t, audits, 2)
	assert.Equal(t, outcomedomain.OutcomeReplied, audits[0].Outcome)
	assert.Equal(t, outcomedomain.OutcomeOpportunityCreated, audits[1].Outcome)
	assert.Equal(t, "acme", audits[1].Context["company_key"])
	assert.Equal(t, "replied", audits[1].Context["previous_outcome"])
}

func TestSetOutcomeLockRejectionLeavesNoAudit(t *testing.T) {
	f := newFixture(t)

	_, err := f.set(t, outcomedomain.OutcomeMeetingBooked, false)
	require.NoError(t, err)

	_, err = f.set(t, outcomedomain.OutcomeReplied, false)
	require.Error(t, err)

	var count int64
	require.NoError(t, f.svc.db.Model(&outcomedomain.OutcomeAudit{}).
		Where("contact_id = ?", f.contactID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetContactScopedToAccount(t *testing.T) {
	f := newFixture(t)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	_, err = f.svc.GetContact(context.Background(), node.Generate().String(), f.contactID.String())
	assert.ErrorIs(t, err, outcomedomain.ErrContactNotFound)
}
