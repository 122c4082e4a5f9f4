package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/leadrail/leadrail/internal/observability/context"
)

const contextAccountIDKey = "account_id"

// AuthRequired resolves the bearer token to an account id and stores it on
// both the gin context and the request context for downstream logging.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		accountID, err := s.verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAccountIDKey, accountID)
		c.Request = c.Request.WithContext(
			obscontext.WithAccountID(c.Request.Context(), accountID))
		c.Next()
	}
}

// RateLimited throttles paid-action routes per account when the redis
// limiter is configured. Limiter outages fail open: the ledger still
// enforces spend.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.actionLimiter.Enabled() {
			c.Next()
			return
		}

		result, err := s.actionLimiter.AllowAccount(c.Request.Context(), s.accountID(c))
		if err != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", result.RetryAfter.String())
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// ActionLocked holds a short per-account lease for the named paid action
// while the request is in flight, so doubled submissions do not double-
// spend. Lock outages fail open; a held lock answers like a rate limit.
func (s *Server) ActionLocked(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lease, ok, err := s.actionLimiter.LockAction(c.Request.Context(), s.accountID(c), action)
		if err != nil {
			c.Next()
			return
		}
		if !ok {
			AbortWithError(c, ErrRateLimited)
			return
		}
		defer func() { _ = lease.Release(c.Request.Context()) }()
		c.Next()
	}
}

func (s *Server) accountID(c *gin.Context) string {
	return c.GetString(contextAccountIDKey)
}
