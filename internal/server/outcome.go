package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
)

type setOutcomeRequest struct {
	Outcome string `json:"outcome"`
	Confirm bool   `json:"confirm,omitempty"`
}

func (s *Server) SetOutcome(c *gin.Context) {
	var req setOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.outcomeSvc.SetOutcome(c.Request.Context(), outcomedomain.SetOutcomeRequest{
		AccountID: s.accountID(c),
		ContactID: strings.TrimSpace(c.Param("id")),
		Outcome:   outcomedomain.Outcome(strings.TrimSpace(req.Outcome)),
		Confirm:   req.Confirm,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContact(c *gin.Context) {
	resp, err := s.outcomeSvc.GetContact(c.Request.Context(), s.accountID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
