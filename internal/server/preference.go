package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
)

type adjustWeightsRequest struct {
	ActionType string `json:"action_type"`
	SubjectRef string `json:"subject_ref,omitempty"`
}

func (s *Server) AdjustWeights(c *gin.Context) {
	var req adjustWeightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.preferenceSvc.Adjust(c.Request.Context(), prefdomain.AdjustRequest{
		AccountID:  s.accountID(c),
		ActionType: prefdomain.ActionType(strings.TrimSpace(req.ActionType)),
		SubjectRef: strings.TrimSpace(req.SubjectRef),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWeights(c *gin.Context) {
	resp, err := s.preferenceSvc.GetCurrent(c.Request.Context(), s.accountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWeightHistory(c *gin.Context) {
	var query struct {
		PageSize int    `form:"page_size"`
		Cursor   string `form:"cursor"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.preferenceSvc.GetHistory(c.Request.Context(), prefdomain.HistoryRequest{
		AccountID: s.accountID(c),
		PageSize:  query.PageSize,
		Cursor:    strings.TrimSpace(query.Cursor),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
