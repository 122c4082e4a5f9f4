package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/leadrail/leadrail/internal/account"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	"github.com/leadrail/leadrail/internal/billing"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
	"github.com/leadrail/leadrail/internal/campaign"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	"github.com/leadrail/leadrail/internal/config"
	"github.com/leadrail/leadrail/internal/credit"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	"github.com/leadrail/leadrail/internal/identity"
	"github.com/leadrail/leadrail/internal/observability"
	obsmiddleware "github.com/leadrail/leadrail/internal/observability/logger"
	obsmetrics "github.com/leadrail/leadrail/internal/observability/metrics"
	obstracing "github.com/leadrail/leadrail/internal/observability/tracing"
	"github.com/leadrail/leadrail/internal/outcome"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	"github.com/leadrail/leadrail/internal/preference"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	"github.com/leadrail/leadrail/internal/quota"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	"github.com/leadrail/leadrail/internal/ratelimit"
	"github.com/leadrail/leadrail/internal/signup"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	account.Module,
	credit.Module,
	quota.Module,
	preference.Module,
	outcome.Module,
	campaign.Module,
	billing.Module,
	signup.Module,
	identity.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	verifier      identity.Verifier
	accountSvc    accountdomain.Service
	creditSvc     creditdomain.Service
	quotaSvc      quotadomain.Service
	preferenceSvc prefdomain.Service
	outcomeSvc    outcomedomain.Service
	campaignSvc   campaigndomain.Service
	billingSvc    billingdomain.Service
	provisioner   signup.Provisioner
	actionLimiter *ratelimit.ActionLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Verifier      identity.Verifier
	AccountSvc    accountdomain.Service
	CreditSvc     creditdomain.Service
	QuotaSvc      quotadomain.Service
	PreferenceSvc prefdomain.Service
	OutcomeSvc    outcomedomain.Service
	CampaignSvc   campaigndomain.Service
	BillingSvc    billingdomain.Service
	Provisioner   signup.Provisioner
	ActionLimiter *ratelimit.ActionLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		verifier:      p.Verifier,
		accountSvc:    p.AccountSvc,
		creditSvc:     p.CreditSvc,
		quotaSvc:      p.QuotaSvc,
		preferenceSvc: p.PreferenceSvc,
		outcomeSvc:    p.OutcomeSvc,
		campaignSvc:   p.CampaignSvc,
		billingSvc:    p.BillingSvc,
		provisioner:   p.Provisioner,
		actionLimiter: p.ActionLimiter,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerPublicRoutes() {
	s.engine.POST("/v1/signup", s.Signup)
	s.engine.POST("/webhooks/billing", s.BillingWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", s.AuthRequired())
	{
		api.GET("/account", s.GetAccount)

		credits := api.Group("/credits")
		{
			credits.GET("/balance", s.GetBalance)
			credits.GET("/transactions", s.ListTransactions)
			credits.POST("/deduct", s.RateLimited(), s.ActionLocked("deduct_credits"), s.Deduct)
			credits.POST("/refund", s.Refund)
		}

		quotas := api.Group("/quotas")
		{
			quotas.GET("", s.PeekQuota)
			quotas.POST("/consume", s.ConsumeQuota)
		}

		preferences := api.Group("/preferences")
		{
			preferences.GET("", s.GetWeights)
			preferences.GET("/history", s.GetWeightHistory)
			preferences.POST("/adjust", s.AdjustWeights)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", s.CreateCampaign)
			campaigns.POST("/:id/contacts", s.RateLimited(), s.ActionLocked("queue_contact"), s.QueueContact)
		}

		contacts := api.Group("/contacts")
		{
			contacts.GET("/:id", s.GetContact)
			contacts.POST("/:id/outcome", s.SetOutcome)
		}
	}
}
