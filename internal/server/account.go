package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/leadrail/leadrail/internal/signup"
)

type signupRequest struct {
	Email string `json:"email"`
	Tier  string `json:"tier,omitempty"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.provisioner.Provision(c.Request.Context(), signup.Request{
		Email: strings.TrimSpace(req.Email),
		Tier:  strings.TrimSpace(req.Tier),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAccount(c *gin.Context) {
	resp, err := s.accountSvc.GetByID(c.Request.Context(), s.accountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
