package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/leadrail/leadrail/internal/clock"
	obsmetrics "github.com/leadrail/leadrail/internal/observability/metrics"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	"github.com/leadrail/leadrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) quotadomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quota.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// Consume advances the daily per-company counter and the weekly account
// counter inside one transaction. Each increment is a guarded UPDATE
// (count < limit), so two concurrent calls at limit-1 cannot both pass.
func (s *Service) Consume(ctx context.Context, req quotadomain.ConsumeRequest) (*quotadomain.ConsumeResponse, error) {
	return s.ConsumeWithin(ctx, s.db, req)
}

// ConsumeWithin runs Consume on the given handle. When the handle is
// already a transaction, gorm nests via savepoint and the outer rollback
// takes the quota spend with it.
func (s *Service) ConsumeWithin(ctx context.Context, conn *gorm.DB, req quotadomain.ConsumeRequest) (*quotadomain.ConsumeResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	companyKey := strings.TrimSpace(strings.ToLower(req.CompanyKey))
	if companyKey == "" {
		return nil, quotadomain.ErrInvalidScope
	}

	now := s.clock.Now()
	resp := &quotadomain.ConsumeResponse{}

	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		daily, err := s.increment(ctx, tx, counterKey{
			accountID: accountID,
			scope:     quotadomain.ScopeCompanyContacts,
			scopeKey:  companyKey,
			window:    quotadomain.WindowDaily,
			bucketKey: quotadomain.DailyBucketKey(now),
			limit:     quotadomain.DefaultDailyCompanyLimit,
		}, now)
		if err != nil {
			return err
		}

		weekly, err := s.increment(ctx, tx, counterKey{
			accountID: accountID,
			scope:     quotadomain.ScopeTotalContacts,
			scopeKey:  "",
			window:    quotadomain.WindowWeekly,
			bucketKey: quotadomain.WeeklyBucketKey(now),
			limit:     quotadomain.DefaultWeeklyTotalLimit,
		}, now)
		if err != nil {
			return err
		}

		resp.DailyUsed = daily.Count
		resp.DailyLimit = daily.Limit
		resp.WeeklyUsed = weekly.Count
		resp.WeeklyLimit = weekly.Limit
		return nil
	})
	if err != nil {
		if qe, ok := quotaExceeded(err); ok {
			s.obsMetrics.RecordQuotaDenial(ctx, string(qe.Window))
			s.log.Info("quota denied",
				zap.String("account_id", accountID.String()),
				zap.String("window", string(qe.Window)),
				zap.Int64("used", qe.Used),
				zap.Int64("limit", qe.Limit),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordQuotaIncrement(ctx, string(quotadomain.WindowDaily))
	s.obsMetrics.RecordQuotaIncrement(ctx, string(quotadomain.WindowWeekly))
	return resp, nil
}

// CheckAndIncrement advances one counter addressed by explicit scope and
// window, using the caller's limit on first touch.
func (s *Service) CheckAndIncrement(ctx context.Context, req quotadomain.IncrementRequest) (*quotadomain.IncrementResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Scope) == "" {
		return nil, quotadomain.ErrInvalidScope
	}
	if !req.Window.Valid() {
		return nil, quotadomain.ErrInvalidWindow
	}
	if req.Limit < 1 {
		return nil, quotadomain.ErrInvalidLimit
	}

	now := s.clock.Now()
	bucketKey := quotadomain.DailyBucketKey(now)
	if req.Window == quotadomain.WindowWeekly {
		bucketKey = quotadomain.WeeklyBucketKey(now)
	}

	resp := &quotadomain.IncrementResponse{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := s.increment(ctx, tx, counterKey{
			accountID: accountID,
			scope:     req.Scope,
			scopeKey:  strings.TrimSpace(strings.ToLower(req.ScopeKey)),
			window:    req.Window,
			bucketKey: bucketKey,
			limit:     req.Limit,
		}, now)
		if err != nil {
			return err
		}
		resp.Used = counter.Count
		resp.Limit = counter.Limit
		return nil
	})
	if err != nil {
		if qe, ok := quotaExceeded(err); ok {
			s.obsMetrics.RecordQuotaDenial(ctx, string(qe.Window))
		}
		return nil, err
	}

	s.obsMetrics.RecordQuotaIncrement(ctx, string(req.Window))
	return resp, nil
}

func (s *Service) Peek(ctx context.Context, req quotadomain.PeekRequest) (*quotadomain.PeekResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	companyKey := strings.TrimSpace(strings.ToLower(req.CompanyKey))
	if companyKey == "" {
		return nil, quotadomain.ErrInvalidScope
	}

	now := s.clock.Now()
	resp := &quotadomain.PeekResponse{
		DailyLimit:  quotadomain.DefaultDailyCompanyLimit,
		WeeklyLimit: quotadomain.DefaultWeeklyTotalLimit,
	}

	daily, err := s.find(ctx, s.db, counterKey{
		accountID: accountID,
		scope:     quotadomain.ScopeCompanyContacts,
		scopeKey:  companyKey,
		window:    quotadomain.WindowDaily,
		bucketKey: quotadomain.DailyBucketKey(now),
	})
	if err != nil {
		return nil, err
	}
	if daily != nil {
		resp.DailyUsed = daily.Count
		resp.DailyLimit = daily.Limit
	}

	weekly, err := s.find(ctx, s.db, counterKey{
		accountID: accountID,
		scope:     quotadomain.ScopeTotalContacts,
		scopeKey:  "",
		window:    quotadomain.WindowWeekly,
		bucketKey: quotadomain.WeeklyBucketKey(now),
	})
	if err != nil {
		return nil, err
	}
	if weekly != nil {
		resp.WeeklyUsed = weekly.Count
		resp.WeeklyLimit = weekly.Limit
	}

	return resp, nil
}

type counterKey struct {
	accountID snowflake.ID
	scope     string
	scopeKey  string
	window    quotadomain.Window
	bucketKey string
	limit     int64
}

// increment bumps the counter for the key, creating it on first touch. The
// guarded UPDATE only lands while count < limit; zero rows affected means
// either the row does not exist yet or the window is full.
func (s *Service) increment(ctx context.Context, tx *gorm.DB, key counterKey, now time.Time) (*quotadomain.QuotaCounter, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.WithContext(ctx).Exec(`
			UPDATE quota_counters
			SET count = count + 1, updated_at = ?
			WHERE account_id = ? AND scope = ? AND scope_key = ? AND window_kind = ? AND bucket_key = ?
			  AND count < limit_value
		`, now, key.accountID, key.scope, key.scopeKey, key.window, key.bucketKey)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			return s.find(ctx, tx, key)
		}

		existing, err := s.find(ctx, tx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &quotadomain.QuotaExceededError{
				Window: key.window,
				Used:   existing.Count,
				Limit:  existing.Limit,
			}
		}

		counter := &quotadomain.QuotaCounter{
			ID:        s.genID.Generate(),
			AccountID: key.accountID,
			Scope:     key.scope,
			ScopeKey:  key.scopeKey,
			Window:    key.window,
			BucketKey: key.bucketKey,
			Count:     1,
			Limit:     key.limit,
			UpdatedAt: now,
		}
		err = tx.WithContext(ctx).Create(counter).Error
		if err == nil {
			return counter, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Lost the first-touch race; retry the guarded UPDATE.
	}

	return nil, gorm.ErrInvalidTransaction
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, key counterKey) (*quotadomain.QuotaCounter, error) {
	var counter quotadomain.QuotaCounter
	err := tx.WithContext(ctx).Raw(`
		SELECT * FROM quota_counters
		WHERE account_id = ? AND scope = ? AND scope_key = ? AND window_kind = ? AND bucket_key = ?
	`, key.accountID, key.scope, key.scopeKey, key.window, key.bucketKey).Scan(&counter).Error
	if err != nil {
		return nil, err
	}
	if counter.ID == 0 {
		return nil, nil
	}
	return &counter, nil
}

func quotaExceeded(err error) (*quotadomain.QuotaExceededError, bool) {
	var qe *quotadomain.QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, quotadomain.ErrInvalidAccount
	}
	return id, nil
}
