package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *accountdomain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, email, tier, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID,
		a.Email,
		a.Tier,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, tier, created_at, updated_at FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier accountdomain.Tier, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET tier = ?, updated_at = ? WHERE id = ?`,
		tier,
		updatedAt,
		id,
	).Error
}
