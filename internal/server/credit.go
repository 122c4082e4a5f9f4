package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
)

type deductRequest struct {
	ActionKind string `json:"action_kind"`
	Quantity   int    `json:"quantity,omitempty"`
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) Deduct(c *gin.Context) {
	var req deductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.creditSvc.Deduct(c.Request.Context(), creditdomain.DeductRequest{
		AccountID:  s.accountID(c),
		ActionKind: creditdomain.ActionKind(strings.TrimSpace(req.ActionKind)),
		Quantity:   req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.creditSvc.Refund(c.Request.Context(), creditdomain.RefundRequest{
		AccountID: s.accountID(c),
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBalance(c *gin.Context) {
	resp, err := s.creditSvc.GetBalance(c.Request.Context(), s.accountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		PageSize  int    `form:"page_size"`
		PageToken string `form:"page_token"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.creditSvc.ListTransactions(c.Request.Context(), creditdomain.ListTransactionsRequest{
		AccountID: s.accountID(c),
		PageSize:  query.PageSize,
		PageToken: strings.TrimSpace(query.PageToken),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
