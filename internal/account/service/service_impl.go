package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	"github.com/leadrail/leadrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  accountdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  accountdomain.Repository
}

func New(p Params) accountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req accountdomain.CreateRequest) (*accountdomain.Response, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, accountdomain.ErrInvalidEmail
	}

	tier := req.Tier
	if tier == "" {
		tier = accountdomain.TierStarter
	}
	if !tier.Valid() {
		return nil, accountdomain.ErrInvalidTier
	}

	now := time.Now().UTC()
	account := &accountdomain.Account{
		ID:        s.genID.Generate(),
		Email:     email,
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, accountdomain.ErrEmailTaken
		}
		return nil, err
	}

	return s.toResponse(account), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*accountdomain.Response, error) {
	accountID, err := accountdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, accountdomain.ErrInvalidID
	}

	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}

	return s.toResponse(account), nil
}

func (s *Service) UpdateTier(ctx context.Context, id string, tier accountdomain.Tier) (*accountdomain.Response, error) {
	accountID, err := accountdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, accountdomain.ErrInvalidID
	}
	if !tier.Valid() {
		return nil, accountdomain.ErrInvalidTier
	}

	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}

	account.Tier = tier
	account.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateTier(ctx, s.db, accountID, tier, account.UpdatedAt); err != nil {
		return nil, err
	}

	return s.toResponse(account), nil
}

func (s *Service) toResponse(a *accountdomain.Account) *accountdomain.Response {
	return &accountdomain.Response{
		ID:        a.ID.String(),
		Email:     a.Email,
		Tier:      a.Tier,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
