package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	obsmetrics "github.com/leadrail/leadrail/internal/observability/metrics"
	"github.com/leadrail/leadrail/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) creditdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("credit.service"),
		genID:      p.GenID,
		obsMetrics: p.ObsMetrics,
	}
}

// Deduct charges a paid action against the monthly balance. The balance
// check and the debit are one guarded UPDATE, so concurrent deductions on
// the same account serialize at the store and can never drive remaining
// below zero.
func (s *Service) Deduct(ctx context.Context, req creditdomain.DeductRequest) (*creditdomain.DeductResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 || quantity > creditdomain.MaxDeductQuantity {
		return nil, creditdomain.ErrInvalidQuantity
	}

	unitCost, ok := creditdomain.PerUnitCost(req.ActionKind)
	if !ok {
		return nil, creditdomain.ErrUnknownActionKind
	}
	cost := unitCost * int64(quantity)
	if cost < unitCost {
		return nil, creditdomain.ErrInvalidQuantity
	}

	var remaining int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE credit_balances
			 SET used = used + ?, remaining = remaining - ?, updated_at = ?
			 WHERE account_id = ? AND remaining >= ?`,
			cost,
			cost,
			time.Now().UTC(),
			accountID,
			cost,
		)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			balance, err := findBalance(tx, accountID)
			if err != nil {
				return err
			}
			if balance == nil {
				return creditdomain.ErrLedgerNotInitialized
			}
			return &creditdomain.InsufficientCreditsError{
				Remaining: balance.Remaining,
				Required:  cost,
			}
		}

		balance, err := findBalance(tx, accountID)
		if err != nil {
			return err
		}
		remaining = balance.Remaining

		return tx.Create(&creditdomain.CreditTransaction{
			ID:             s.genID.Generate(),
			AccountID:      accountID,
			ActionKind:     req.ActionKind,
			Quantity:       quantity,
			Cost:           cost,
			RemainingAfter: remaining,
			CreatedAt:      time.Now().UTC(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, creditdomain.ErrInsufficientCredits) {
			s.obsMetrics.RecordCreditDenial(ctx, string(req.ActionKind))
		}
		return nil, err
	}

	s.obsMetrics.RecordCreditDeduct(ctx, string(req.ActionKind))

	return &creditdomain.DeductResponse{Cost: cost, Remaining: remaining}, nil
}

// Refund returns credits after a downstream failure. used never goes below
// zero even when the refunded amount exceeds recorded usage.
func (s *Service) Refund(ctx context.Context, req creditdomain.RefundRequest) (*creditdomain.RefundResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}
	if req.Amount < 1 || req.Amount > creditdomain.MaxRefundAmount {
		return nil, creditdomain.ErrInvalidAmount
	}

	var remaining int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE credit_balances
			 SET used = CASE WHEN used >= ? THEN used - ? ELSE 0 END,
			     remaining = remaining + ?,
			     updated_at = ?
			 WHERE account_id = ?`,
			req.Amount,
			req.Amount,
			req.Amount,
			time.Now().UTC(),
			accountID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return creditdomain.ErrLedgerNotInitialized
		}

		balance, err := findBalance(tx, accountID)
		if err != nil {
			return err
		}
		remaining = balance.Remaining

		return tx.Create(&creditdomain.CreditTransaction{
			ID:             s.genID.Generate(),
			AccountID:      accountID,
			ActionKind:     creditdomain.ActionRefund,
			Quantity:       1,
			Cost:           -req.Amount,
			RemainingAfter: remaining,
			CreatedAt:      time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordCreditRefund(ctx)

	return &creditdomain.RefundResponse{Remaining: remaining}, nil
}

func (s *Service) GetBalance(ctx context.Context, rawAccountID string) (*creditdomain.BalanceResponse, error) {
	accountID, err := parseAccountID(rawAccountID)
	if err != nil {
		return nil, err
	}

	balance, err := findBalance(s.db.WithContext(ctx), accountID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, creditdomain.ErrLedgerNotInitialized
	}

	return &creditdomain.BalanceResponse{
		Total:                   balance.Total,
		Used:                    balance.Used,
		Remaining:               balance.Remaining,
		ResetDate:               balance.ResetDate,
		AffordableMostExpensive: balance.Remaining / creditdomain.MaxPerUnitCost(),
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, req creditdomain.ListTransactionsRequest) (creditdomain.ListTransactionsResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return creditdomain.ListTransactionsResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(pageSize + 1)

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return creditdomain.ListTransactionsResponse{}, err
		}
		createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return creditdomain.ListTransactionsResponse{}, err
		}
		query = query.Where("created_at < ?", createdAt)
	}

	var items []creditdomain.CreditTransaction
	if err := query.Find(&items).Error; err != nil {
		return creditdomain.ListTransactionsResponse{}, err
	}

	pageInfo := pagination.BuildPageInfo(items, pageSize, func(t creditdomain.CreditTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	return creditdomain.ListTransactionsResponse{
		Transactions: items,
		PageInfo:     *pageInfo,
	}, nil
}

func findBalance(db *gorm.DB, accountID snowflake.ID) (*creditdomain.CreditBalance, error) {
	var balance creditdomain.CreditBalance
	err := db.Raw(
		`SELECT account_id, total, used, remaining, reset_date, updated_at
		 FROM credit_balances WHERE account_id = ?`,
		accountID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.AccountID == 0 {
		return nil, nil
	}
	return &balance, nil
}

func parseAccountID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, creditdomain.ErrInvalidAccount
	}
	return id, nil
}
