package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
)

type consumeQuotaRequest struct {
	CompanyKey string `json:"company_key"`
}

func (s *Server) ConsumeQuota(c *gin.Context) {
	var req consumeQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.quotaSvc.Consume(c.Request.Context(), quotadomain.ConsumeRequest{
		AccountID:  s.accountID(c),
		CompanyKey: strings.TrimSpace(req.CompanyKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PeekQuota(c *gin.Context) {
	var query struct {
		CompanyKey string `form:"company_key"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.quotaSvc.Peek(c.Request.Context(), quotadomain.PeekRequest{
		AccountID:  s.accountID(c),
		CompanyKey: strings.TrimSpace(query.CompanyKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
