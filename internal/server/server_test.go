package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	accountrepo "github.com/leadrail/leadrail/internal/account/repository"
	accountservice "github.com/leadrail/leadrail/internal/account/service"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
	billingservice "github.com/leadrail/leadrail/internal/billing/service"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	campaignservice "github.com/leadrail/leadrail/internal/campaign/service"
	"github.com/leadrail/leadrail/internal/clock"
	"github.com/leadrail/leadrail/internal/config"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	creditservice "github.com/leadrail/leadrail/internal/credit/service"
	"github.com/leadrail/leadrail/internal/identity"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	outcomeservice "github.com/leadrail/leadrail/internal/outcome/service"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	prefservice "github.com/leadrail/leadrail/internal/preference/service"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
	quotaservice "github.com/leadrail/leadrail/internal/quota/service"
	"github.com/leadrail/leadrail/internal/signup"
	dbpkg "github.com/leadrail/leadrail/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "tok-test"

type testEnv struct {
	server    *Server
	clock     *clock.FakeClock
	accountID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
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
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fc := clock.NewFakeClock(time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC))
	accountID := node.Generate()

	cfg := config.Config{
		HTTPAddr:     ":0",
		StaticTokens: fmt.Sprintf("%s:%s", testToken, accountID),
	}

	quotaSvc := quotaservice.New(quotaservice.Params{DB: db, Log: log, GenID: node, Clock: fc})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		GenID:         node,
		Verifier:      identity.New(identity.Params{Config: cfg, Log: log}),
		AccountSvc:    accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Repo: accountrepo.Provide()}),
		CreditSvc:     creditservice.New(creditservice.Params{DB: db, Log: log, GenID: node}),
		QuotaSvc:      quotaSvc,
		PreferenceSvc: prefservice.New(prefservice.Params{DB: db, Log: log, GenID: node}),
		OutcomeSvc:    outcomeservice.New(outcomeservice.Params{DB: db, Log: log, GenID: node, Clock: fc}),
		CampaignSvc:   campaignservice.New(campaignservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Quota: quotaSvc}),
		BillingSvc:    billingservice.New(billingservice.Params{DB: db, Log: log, GenID: node, Clock: fc}),
		Provisioner:   signup.New(signup.Params{DB: db, Log: log, GenID: node, Clock: fc}),
	})

	require.NoError(t, db.Create(&accountdomain.Account{
		ID:    accountID,
		Email: "owner@acme.example",
		Tier:  accountdomain.TierStarter,
	}).Error)
	require.NoError(t, db.Create(&creditdomain.CreditBalance{
		AccountID: accountID,
		Total:     100,
		Used:      0,
		Remaining: 100,
		ResetDate: fc.Now().AddDate(0, 1, 0),
		UpdatedAt: fc.Now(),
	}).Error)

	return &testEnv{server: srv, clock: fc, accountID: accountID.String()}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	w := httptest.NewRecorder()
	e.server.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/credits/balance", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/credits/balance", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	env.server.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/signup", gin.H{"email": "new@user.example", "tier": "pro"}, false)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "pro", data["tier"])
	assert.Equal(t, float64(1000), data["total"])

	w = env.do(t, http.MethodPost, "/v1/signup", gin.H{"email": "new@user.example"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeductEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/credits/deduct", gin.H{"action_kind": "generate_leads"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(5), data["cost"])
	assert.Equal(t, float64(95), data["remaining"])
}

func TestDeductInsufficientCreditsPayload(t *testing.T) {
	env := newTestEnv(t)

	// Drain the balance with ten full enrichments.
	for i := 0; i < 10; i++ {
		w := env.do(t, http.MethodPost, "/v1/credits/deduct", gin.H{"action_kind": "enrich_company_full"}, true)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodPost, "/v1/credits/deduct", gin.H{"action_kind": "enrich_company_full"}, true)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	var body struct {
		Error errorPayload `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "insufficient_credits", body.Error.Type)
	require.NotNil(t, body.Error.Remaining)
	assert.Equal(t, int64(0), *body.Error.Remaining)
	require.NotNil(t, body.Error.Required)
	assert.Equal(t, int64(10), *body.Error.Required)
}

func TestQuotaEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodPost, "/v1/quotas/consume", gin.H{"company_key": "acme"}, true)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodPost, "/v1/quotas/consume", gin.H{"company_key": "acme"}, true)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body struct {
		Error errorPayload `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "quota_exceeded", body.Error.Type)

	w = env.do(t, http.MethodGet, "/v1/quotas?company_key=acme", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(5), data["daily_used"])
}

func TestPreferenceEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/preferences", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(30), data["title_match"])

	w = env.do(t, http.MethodPost, "/v1/preferences/adjust", gin.H{"action_type": "reject_contact"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeData(t, w)
	assert.Equal(t, float64(29), data["title_match"])
	assert.Equal(t, float64(1), data["version"])

	w = env.do(t, http.MethodPost, "/v1/preferences/adjust", gin.H{"action_type": "mystery"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCampaignAndOutcomeFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/campaigns", gin.H{"name": "Spring push"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	campaignID := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodPost, "/v1/campaigns/"+campaignID+"/contacts", gin.H{
		"contact_email": "dana@acme.example",
		"company_key":   "acme",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)
	contactID := decodeData(t, w)["contact_id"].(string)

	// Terminal outcome locks the contact.
	w = env.do(t, http.MethodPost, "/v1/contacts/"+contactID+"/outcome", gin.H{"outcome": "meeting_booked"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/contacts/"+contactID+"/outcome", gin.H{"outcome": "replied"}, true)
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Error errorPayload `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "outcome_locked", body.Error.Type)
}

func TestEarlyNoResponseConfirmation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/campaigns", gin.H{"name": "Spring push"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	campaignID := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodPost, "/v1/campaigns/"+campaignID+"/contacts", gin.H{
		"contact_email": "dana@acme.example",
		"company_key":   "acme",
	}, true)
	require.Equal(t, http.StatusOK, w.Code)
	contactID := decodeData(t, w)["contact_id"].(string)

	// One day after send: unconfirmed no_response is rejected.
	env.clock.Advance(24 * time.Hour)
	w = env.do(t, http.MethodPost, "/v1/contacts/"+contactID+"/outcome", gin.H{"outcome": "no_response"}, true)
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Error errorPayload `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "confirmation_required", body.Error.Type)

	w = env.do(t, http.MethodPost, "/v1/contacts/"+contactID+"/outcome", gin.H{
		"outcome": "no_response",
		"confirm": true,
	}, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBillingWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/webhooks/billing", gin.H{
		"event_id":   "7b0e3c9a-9d10-4f2f-8c66-0a4c4f5d2ab1",
		"account_id": env.accountID,
		"type":       "subscription.updated",
		"tier":       "pro",
	}, false)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["applied"])
	assert.Equal(t, float64(1000), data["total"])

	// Replay acknowledges without reapplying.
	w = env.do(t, http.MethodPost, "/webhooks/billing", gin.H{
		"event_id":   "7b0e3c9a-9d10-4f2f-8c66-0a4c4f5d2ab1",
		"account_id": env.accountID,
		"type":       "subscription.updated",
		"tier":       "pro",
	}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeData(t, w)["applied"])
}
