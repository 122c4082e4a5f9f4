package signup

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	"github.com/leadrail/leadrail/internal/clock"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	"github.com/leadrail/leadrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Request struct {
	Email string `json:"email"`
	Tier  string `json:"tier,omitempty"`
}

type Response struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Tier      string    `json:"tier"`
	Total     int64     `json:"total"`
	Remaining int64     `json:"remaining"`
	ResetDate time.Time `json:"reset_date"`
}

// Provisioner creates a new account with its ledger and default weight
// vector in one transaction, so a half-provisioned account can never be
// observed.
type Provisioner interface {
	Provision(ctx context.Context, req Request) (*Response, error)
}

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

func New(p Params) Provisioner {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("signup.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Provision(ctx context.Context, req Request) (*Response, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, accountdomain.ErrInvalidEmail
	}

	tier := accountdomain.TierStarter
	if raw := strings.TrimSpace(strings.ToLower(req.Tier)); raw != "" {
		tier = accountdomain.Tier(raw)
		if !tier.Valid() {
			return nil, accountdomain.ErrInvalidTier
		}
	}

	now := s.clock.Now()
	accountID := s.genID.Generate()
	total := tier.MonthlyAllotment()
	resetDate := now.AddDate(0, 1, 0)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&accountdomain.Account{
			ID:        accountID,
			Email:     email,
			Tier:      tier,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Create(&creditdomain.CreditBalance{
			AccountID: accountID,
			Total:     total,
			Used:      0,
			Remaining: total,
			ResetDate: resetDate,
			UpdatedAt: now,
		}).Error; err != nil {
			return err
		}

		vector := prefdomain.DefaultWeightVector(accountID)
		vector.UpdatedAt = now
		return tx.WithContext(ctx).Create(&vector).Error
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, accountdomain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("account provisioned",
		zap.String("account_id", accountID.String()),
		zap.String("tier", string(tier)),
	)
	return &Response{
		AccountID: accountID.String(),
		Email:     email,
		Tier:      string(tier),
		Total:     total,
		Remaining: total,
		ResetDate: resetDate,
	}, nil
}

var Module = fx.Module("signup",
	fx.Provide(New),
)
