package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
)

type billingWebhookRequest struct {
	EventID   string     `json:"event_id"`
	AccountID string     `json:"account_id"`
	Type      string     `json:"type"`
	Tier      string     `json:"tier,omitempty"`
	ResetDate *time.Time `json:"reset_date,omitempty"`
}

// BillingWebhook receives tier-change and cycle-reset deliveries from the
// billing provider. Replays are acknowledged with 200 so the provider
// stops retrying.
func (s *Server) BillingWebhook(c *gin.Context) {
	var req billingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.ApplyEvent(c.Request.Context(), billingdomain.ApplyEventRequest{
		EventID:   strings.TrimSpace(req.EventID),
		AccountID: strings.TrimSpace(req.AccountID),
		Type:      billingdomain.EventType(strings.TrimSpace(req.Type)),
		Tier:      strings.TrimSpace(req.Tier),
		ResetDate: req.ResetDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
