package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/leadrail/leadrail/internal/clock"
	obsmetrics "github.com/leadrail/leadrail/internal/observability/metrics"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

func New(p Params) outcomedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("outcome.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// SetOutcome enforces the terminal lock with a guarded UPDATE: the write
// only lands while outcome_locked is false, so two concurrent terminal
// writes cannot both succeed.
func (s *Service) SetOutcome(ctx context.Context, req outcomedomain.SetOutcomeRequest) (*outcomedomain.SetOutcomeResponse, error) {
	accountID, err := parseID(req.AccountID, outcomedomain.ErrInvalidAccount)
	if err != nil {
		return nil, err
	}
	contactID, err := parseID(req.ContactID, outcomedomain.ErrInvalidContact)
	if err != nil {
		return nil, err
	}
	if !req.Outcome.Valid() {
		return nil, outcomedomain.ErrUnknownOutcome
	}

	now := s.clock.Now()
	resp := &outcomedomain.SetOutcomeResponse{
		ContactID: contactID.String(),
		Outcome:   req.Outcome,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact, err := s.findContact(ctx, tx, accountID, contactID)
		if err != nil {
			return err
		}
		if contact == nil {
			return outcomedomain.ErrContactNotFound
		}
		if contact.OutcomeLocked {
			return outcomedomain.ErrOutcomeLocked
		}

		// Advisory guardrail: no_response within three days of send needs
		// an explicit confirmation, not a silent write.
		if req.Outcome == outcomedomain.OutcomeNoResponse && !req.Confirm &&
			contact.SentAt != nil && now.Sub(*contact.SentAt) < outcomedomain.NoResponseGuardrail {
			return outcomedomain.ErrEarlyNoResponse
		}

		locked := req.Outcome.Terminal()
		var res *gorm.DB
		if locked {
			res = tx.WithContext(ctx).Exec(`
				UPDATE engagement_contacts
				SET outcome = ?, outcome_locked = ?, outcome_locked_at = ?, updated_at = ?
				WHERE id = ? AND account_id = ? AND outcome_locked = ?
			`, req.Outcome, true, now, now, contactID, accountID, false)
		} else {
			res = tx.WithContext(ctx).Exec(`
				UPDATE engagement_contacts
				SET outcome = ?, updated_at = ?
				WHERE id = ? AND account_id = ? AND outcome_locked = ?
			`, req.Outcome, now, contactID, accountID, false)
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race with a concurrent terminal write.
			return outcomedomain.ErrOutcomeLocked
		}

		resp.Locked = locked
		if locked {
			lockedAt := now
			resp.LockedAt = &lockedAt
		}

		audit := &outcomedomain.OutcomeAudit{
			ID:        s.genID.Generate(),
			AccountID: accountID,
			ContactID: contactID,
			Outcome:   req.Outcome,
			Context: datatypes.JSONMap{
				"campaign_id":      contact.CampaignID.String(),
				"company_key":      contact.CompanyKey,
				"contact_email":    contact.ContactEmail,
				"title":            contact.Title,
				"previous_outcome": string(contact.Outcome),
			},
			CreatedAt: now,
		}
		return tx.WithContext(ctx).Create(audit).Error
	})
	if err != nil {
		if err == outcomedomain.ErrOutcomeLocked {
			s.obsMetrics.RecordOutcomeLockDenied(ctx)
		}
		return nil, err
	}

	s.obsMetrics.RecordOutcomeWrite(ctx, string(req.Outcome), resp.Locked)
	s.log.Debug("outcome recorded",
		zap.String("account_id", accountID.String()),
		zap.String("contact_id", contactID.String()),
		zap.String("outcome", string(req.Outcome)),
		zap.Bool("locked", resp.Locked),
	)
	return resp, nil
}

func (s *Service) GetContact(ctx context.Context, rawAccountID, rawContactID string) (*outcomedomain.EngagementContact, error) {
	accountID, err := parseID(rawAccountID, outcomedomain.ErrInvalidAccount)
	if err != nil {
		return nil, err
	}
	contactID, err := parseID(rawContactID, outcomedomain.ErrInvalidContact)
	if err != nil {
		return nil, err
	}

	contact, err := s.findContact(ctx, s.db, accountID, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, outcomedomain.ErrContactNotFound
	}
	return contact, nil
}

func (s *Service) findContact(ctx context.Context, tx *gorm.DB, accountID, contactID snowflake.ID) (*outcomedomain.EngagementContact, error) {
	var contact outcomedomain.EngagementContact
	err := tx.WithContext(ctx).Raw(`
		SELECT * FROM engagement_contacts WHERE id = ? AND account_id = ?
	`, contactID, accountID).Scan(&contact).Error
	if err != nil {
		return nil, err
	}
	if contact.ID == 0 {
		return nil, nil
	}
	return &contact, nil
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
