package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/leadrail/leadrail/internal/clock"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	dbpkg "github.com/leadrail/leadrail/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, string) {
	t.Helper()

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&quotadomain.QuotaCounter{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// Wednesday 2026-01-07 10:00 UTC.
	fc := clock.NewFakeClock(time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC))

	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc}).(*Service)
	return svc, fc, node.Generate().String()
}

func TestConsumeCountsBothWindows(t *testing.T) {
	svc, _, accountID := newTestService(t)

	resp, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.DailyUsed)
	assert.Equal(t, int64(5), resp.DailyLimit)
	assert.Equal(t, int64(1), resp.WeeklyUsed)
	assert.Equal(t, int64(50), resp.WeeklyLimit)
}

func TestConsumeDailyLimitPerCompany(t *testing.T) {
	svc, _, accountID := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
			AccountID:  accountID,
			CompanyKey: "acme",
		})
		require.NoError(t, err)
	}

	_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)

	var qe *quotadomain.QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, quotadomain.WindowDaily, qe.Window)
	assert.Equal(t, int64(5), qe.Used)

	// A different company has its own daily counter.
	resp, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "globex",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.DailyUsed)
	assert.Equal(t, int64(6), resp.WeeklyUsed)
}

func TestConsumeDenialLeavesWeeklyUntouched(t *testing.T) {
	svc, _, accountID := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
			AccountID:  accountID,
			CompanyKey: "acme",
		})
		require.NoError(t, err)
	}

	_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.Error(t, err)

	// The denied call must not have advanced the weekly counter.
	peek, err := svc.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), peek.WeeklyUsed)
}

func TestConsumeDailyWindowRollsOver(t *testing.T) {
	svc, fc, accountID := newTestService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
			AccountID:  accountID,
			CompanyKey: "acme",
		})
		require.NoError(t, err)
	}

	fc.Advance(24 * time.Hour)

	resp, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.DailyUsed)
	// Still the same ISO week, so the weekly counter carries over.
	assert.Equal(t, int64(6), resp.WeeklyUsed)
}

func TestConsumeWeeklyWindowRollsOver(t *testing.T) {
	svc, fc, accountID := newTestService(t)

	_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)

	// Next Monday starts a fresh weekly bucket.
	fc.Set(time.Date(2026, 1, 12, 0, 30, 0, 0, time.UTC))

	resp, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.WeeklyUsed)
}

func TestConsumeWeeklyLimitAcrossCompanies(t *testing.T) {
	svc, fc, accountID := newTestService(t)

	// 50 sends spread over ten companies inside one week.
	companies := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10"}
	for day := 0; day < 2; day++ {
		for _, company := range companies {
			for i := 0; i < 5; i++ {
				_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
					AccountID:  accountID,
					CompanyKey: company,
				})
				// Only 50 of the 100 attempts fit the weekly window.
				if err != nil {
					assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)
				}
			}
		}
		fc.Advance(24 * time.Hour)
	}

	peek, err := svc.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), peek.WeeklyUsed)
}

func TestConsumeConcurrentAtLastSlot(t *testing.T) {
	svc, _, accountID := newTestService(t)

	// One connection keeps both goroutines on the same in-memory database;
	// the guarded UPDATE still decides the winner.
	sqlDB, err := svc.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for i := 0; i < 4; i++ {
		_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
			AccountID:  accountID,
			CompanyKey: "acme",
		})
		require.NoError(t, err)
	}

	// One daily slot left for acme; only one of the two racers gets it.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
				AccountID:  accountID,
				CompanyKey: "acme",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, denied int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var qe *quotadomain.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, quotadomain.WindowDaily, qe.Window)
		denied++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, denied)

	peek, err := svc.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), peek.DailyUsed)
	assert.Equal(t, int64(5), peek.WeeklyUsed)
}

func TestCheckAndIncrementSingleCounter(t *testing.T) {
	svc, _, accountID := newTestService(t)

	for i := 1; i <= 3; i++ {
		resp, err := svc.CheckAndIncrement(context.Background(), quotadomain.IncrementRequest{
			AccountID: accountID,
			Scope:     "exports",
			Window:    quotadomain.WindowDaily,
			Limit:     3,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), resp.Used)
		assert.Equal(t, int64(3), resp.Limit)
	}

	_, err := svc.CheckAndIncrement(context.Background(), quotadomain.IncrementRequest{
		AccountID: accountID,
		Scope:     "exports",
		Window:    quotadomain.WindowDaily,
		Limit:     3,
	})
	var qe *quotadomain.QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(3), qe.Used)

	// The composite counters never saw any of this.
	peek, err := svc.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), peek.DailyUsed)
	assert.Equal(t, int64(0), peek.WeeklyUsed)
}

func TestCheckAndIncrementValidation(t *testing.T) {
	svc, _, accountID := newTestService(t)

	_, err := svc.CheckAndIncrement(context.Background(), quotadomain.IncrementRequest{
		AccountID: accountID,
		Scope:     " ",
		Window:    quotadomain.WindowDaily,
		Limit:     3,
	})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidScope)

	_, err = svc.CheckAndIncrement(context.Background(), quotadomain.IncrementRequest{
		AccountID: accountID,
		Scope:     "exports",
		Window:    quotadomain.Window("monthly"),
		Limit:     3,
	})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidWindow)

	_, err = svc.CheckAndIncrement(context.Background(), quotadomain.IncrementRequest{
		AccountID: accountID,
		Scope:     "exports",
		Window:    quotadomain.WindowWeekly,
		Limit:     0,
	})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidLimit)
}

func TestPeekDefaultsWhenUntouched(t *testing.T) {
	svc, _, accountID := newTestService(t)

	peek, err := svc.Peek(context.Background(), quotadomain.PeekRequest{
		AccountID:  accountID,
		CompanyKey: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), peek.DailyUsed)
	assert.Equal(t, int64(5), peek.DailyLimit)
	assert.Equal(t, int64(0), peek.WeeklyUsed)
	assert.Equal(t, int64(50), peek.WeeklyLimit)
}

func TestConsumeValidation(t *testing.T) {
	svc, _, accountID := newTestService(t)

	_, err := svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID:  "not-a-number",
		CompanyKey: "acme",
	})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidAccount)

	_, err = svc.Consume(context.Background(), quotadomain.ConsumeRequest{
		AccountID: accountID,
	})
	assert.ErrorIs(t, err, quotadomain.ErrInvalidScope)
}

func TestWeeklyBucketKey(t *testing.T) {
	// Monday maps to itself.
	assert.Equal(t, "2026-01-05", quotadomain.WeeklyBucketKey(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	// Sunday maps back to the preceding Monday.
	assert.Equal(t, "2026-01-05", quotadomain.WeeklyBucketKey(time.Date(2026, 1, 11, 23, 59, 0, 0, time.UTC)))
}
