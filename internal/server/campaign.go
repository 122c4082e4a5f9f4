package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
)

type createCampaignRequest struct {
	Name string `json:"name"`
}

type queueContactRequest struct {
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email"`
	CompanyKey   string `json:"company_key"`
	Title        string `json:"title,omitempty"`
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.campaignSvc.Create(c.Request.Context(), campaigndomain.CreateRequest{
		AccountID: s.accountID(c),
		Name:      strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QueueContact(c *gin.Context) {
	var req queueContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.campaignSvc.QueueContact(c.Request.Context(), campaigndomain.QueueContactRequest{
		AccountID:    s.accountID(c),
		CampaignID:   strings.TrimSpace(c.Param("id")),
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		CompanyKey:   strings.TrimSpace(req.CompanyKey),
		Title:        strings.TrimSpace(req.Title),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
