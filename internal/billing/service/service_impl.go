package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
	"github.com/leadrail/leadrail/internal/clock"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	"github.com/leadrail/leadrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) billingdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// ApplyEvent inserts the delivery row and mutates the ledger in the same
// transaction. The unique index on event_id is the idempotency gate: a
// replay trips a duplicate key, the transaction rolls back, and the caller
// gets an acknowledgement with the current ledger state.
func (s *Service) ApplyEvent(ctx context.Context, req billingdomain.ApplyEventRequest) (*billingdomain.ApplyEventResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	eventID := strings.TrimSpace(strings.ToLower(req.EventID))
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, billingdomain.ErrInvalidEventID
	}
	if !req.Type.Valid() {
		return nil, billingdomain.ErrUnknownEventType
	}

	var tier accountdomain.Tier
	if req.Type == billingdomain.EventSubscriptionUpdated {
		tier = accountdomain.Tier(strings.TrimSpace(strings.ToLower(req.Tier)))
		if !tier.Valid() {
			return nil, billingdomain.ErrInvalidTier
		}
	}

	now := s.clock.Now()
	resp := &billingdomain.ApplyEventResponse{Applied: true}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := &billingdomain.BillingEvent{
			ID:        s.genID.Generate(),
			EventID:   eventID,
			AccountID: accountID,
			Type:      req.Type,
			Payload: datatypes.JSONMap{
				"tier": string(tier),
			},
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(event).Error; err != nil {
			return err
		}

		switch req.Type {
		case billingdomain.EventSubscriptionUpdated:
			return s.applyTierChange(ctx, tx, accountID, tier, now)
		case billingdomain.EventCycleReset:
			return s.applyCycleReset(ctx, tx, accountID, req, now)
		}
		return billingdomain.ErrUnknownEventType
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Replay: acknowledge without reapplying.
			resp.Applied = false
			if err := s.readLedger(ctx, accountID, resp); err != nil {
				return nil, err
			}
			s.log.Info("billing event replayed",
				zap.String("event_id", eventID),
				zap.String("account_id", accountID.String()),
			)
			return resp, nil
		}
		return nil, err
	}

	if err := s.readLedger(ctx, accountID, resp); err != nil {
		return nil, err
	}

	s.log.Info("billing event applied",
		zap.String("event_id", eventID),
		zap.String("account_id", accountID.String()),
		zap.String("type", string(req.Type)),
	)
	return resp, nil
}

// applyTierChange rewrites total to the new tier's allotment and rebases
// remaining on the already-used amount, floored at zero. Also moves the
// account row itself to the new tier.
func (s *Service) applyTierChange(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, tier accountdomain.Tier, now time.Time) error {
	total := tier.MonthlyAllotment()

	res := tx.WithContext(ctx).Exec(`
		UPDATE credit_balances
		SET total = ?,
		    remaining = CASE WHEN ? >= used THEN ? - used ELSE 0 END,
		    updated_at = ?
		WHERE account_id = ?
	`, total, total, total, now, accountID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return billingdomain.ErrLedgerNotFound
	}

	return tx.WithContext(ctx).Exec(`
		UPDATE accounts SET tier = ?, updated_at = ? WHERE id = ?
	`, tier, now, accountID).Error
}

func (s *Service) applyCycleReset(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, req billingdomain.ApplyEventRequest, now time.Time) error {
	resetDate := req.ResetDate
	if resetDate == nil {
		next := s.clock.Now().AddDate(0, 1, 0)
		resetDate = &next
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE credit_balances
		SET used = 0, remaining = total, reset_date = ?, updated_at = ?
		WHERE account_id = ?
	`, resetDate, now, accountID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return billingdomain.ErrLedgerNotFound
	}
	return nil
}

func (s *Service) readLedger(ctx context.Context, accountID snowflake.ID, resp *billingdomain.ApplyEventResponse) error {
	var balance creditdomain.CreditBalance
	err := s.db.WithContext(ctx).Raw(`
		SELECT * FROM credit_balances WHERE account_id = ?
	`, accountID).Scan(&balance).Error
	if err != nil {
		return err
	}
	if balance.AccountID == 0 {
		return billingdomain.ErrLedgerNotFound
	}
	resp.Total = balance.Total
	resp.Used = balance.Used
	resp.Remaining = balance.Remaining
	resp.ResetDate = balance.ResetDate
	return nil
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, billingdomain.ErrInvalidAccount
	}
	return id, nil
}
