package migration

import (
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	"github.com/leadrail/leadrail/internal/config"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations for postgres; AutoMigrate keeps the
		// sqlite and mysql paths (local dev, tests) in sync with the
		// models.
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&accountdomain.Account{},
			&creditdomain.CreditBalance{},
			&creditdomain.CreditTransaction{},
			&quotadomain.QuotaCounter{},
			&prefdomain.WeightVector{},
			&prefdomain.WeightVersion{},
			&campaigndomain.Campaign{},
			&outcomedomain.EngagementContact{},
			&outcomedomain.OutcomeAudit{},
			&billingdomain.BillingEvent{},
		)
	}),
)
