package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	"github.com/leadrail/leadrail/internal/clock"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Quota quotadomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	quota quotadomain.Service
}

func New(p Params) campaigndomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("campaign.service"),
		genID: p.GenID,
		clock: p.Clock,
		quota: p.Quota,
	}
}

func (s *Service) Create(ctx context.Context, req campaigndomain.CreateRequest) (*campaigndomain.CreateResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, campaigndomain.ErrInvalidName
	}

	now := s.clock.Now()
	campaign := &campaigndomain.Campaign{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		Name:      name,
		Status:    campaigndomain.CampaignActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, err
	}

	s.log.Info("campaign created",
		zap.String("account_id", accountID.String()),
		zap.String("campaign_id", campaign.ID.String()),
	)
	return &campaigndomain.CreateResponse{
		ID:        campaign.ID.String(),
		Name:      campaign.Name,
		Status:    campaign.Status,
		CreatedAt: campaign.CreatedAt,
	}, nil
}

// QueueContact consumes quota first, then records the engagement row. The
// quota service's own transaction is the gate; a denial propagates before
// any contact exists.
func (s *Service) QueueContact(ctx context.Context, req campaigndomain.QueueContactRequest) (*campaigndomain.QueueContactResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	campaignID, err := snowflake.ParseString(strings.TrimSpace(req.CampaignID))
	if err != nil || campaignID == 0 {
		return nil, campaigndomain.ErrCampaignNotFound
	}

	email := strings.TrimSpace(strings.ToLower(req.ContactEmail))
	companyKey := strings.TrimSpace(strings.ToLower(req.CompanyKey))
	if email == "" || companyKey == "" {
		return nil, campaigndomain.ErrInvalidContact
	}

	var campaign campaigndomain.Campaign
	err = s.db.WithContext(ctx).Raw(`
		SELECT * FROM campaigns WHERE id = ? AND account_id = ?
	`, campaignID, accountID).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, campaigndomain.ErrCampaignNotFound
	}
	if campaign.Status != campaigndomain.CampaignActive {
		return nil, campaigndomain.ErrCampaignNotActive
	}

	now := s.clock.Now()
	contact := &outcomedomain.EngagementContact{
		ID:           s.genID.Generate(),
		AccountID:    accountID,
		CampaignID:   campaignID,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: email,
		CompanyKey:   companyKey,
		Title:        strings.TrimSpace(req.Title),
		SentAt:       &now,
		Outcome:      outcomedomain.OutcomeUnset,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Quota spend and contact INSERT commit or roll back together; a
	// failed insert never strands a consumed slot.
	var consumed *quotadomain.ConsumeResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err = s.quota.ConsumeWithin(ctx, tx, quotadomain.ConsumeRequest{
			AccountID:  req.AccountID,
			CompanyKey: companyKey,
		})
		if err != nil {
			return err
		}
		return tx.Create(contact).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("contact queued",
		zap.String("account_id", accountID.String()),
		zap.String("campaign_id", campaignID.String()),
		zap.String("contact_id", contact.ID.String()),
		zap.String("company_key", companyKey),
	)
	return &campaigndomain.QueueContactResponse{
		ContactID:  contact.ID.String(),
		SentAt:     now,
		DailyUsed:  consumed.DailyUsed,
		WeeklyUsed: consumed.WeeklyUsed,
	}, nil
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, campaigndomain.ErrInvalidAccount
	}
	return id, nil
}
