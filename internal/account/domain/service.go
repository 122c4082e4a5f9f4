package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	UpdateTier(ctx context.Context, id string, tier Tier) (*Response, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier Tier, updatedAt time.Time) error
}

type CreateRequest struct {
	Email string `json:"email"`
	Tier  Tier   `json:"tier"`
}

type Response struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidTier     = errors.New("invalid_tier")
	ErrInvalidID       = errors.New("invalid_id")
	ErrAccountNotFound = errors.New("account_not_found")
	ErrEmailTaken      = errors.New("email_taken")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
