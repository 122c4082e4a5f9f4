package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/leadrail/leadrail/internal/account/domain"
	billingdomain "github.com/leadrail/leadrail/internal/billing/domain"
	campaigndomain "github.com/leadrail/leadrail/internal/campaign/domain"
	creditdomain "github.com/leadrail/leadrail/internal/credit/domain"
	"github.com/leadrail/leadrail/internal/identity"
	outcomedomain "github.com/leadrail/leadrail/internal/outcome/domain"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	quotadomain "github.com/leadrail/leadrail/internal/quota/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// Remaining/Required accompany insufficient-credit denials; Used/Limit
	// accompany quota denials.
	Remaining *int64 `json:"remaining,omitempty"`
	Required  *int64 `json:"required,omitempty"`
	Used      *int64 `json:"used,omitempty"`
	Limit     *int64 `json:"limit,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}

	case errors.Is(err, ErrUnauthorized), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}

	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		payload := errorPayload{
			Type:    "insufficient_credits",
			Message: "not enough credits for this action",
		}
		var detail *creditdomain.InsufficientCreditsError
		if errors.As(err, &detail) {
			payload.Remaining = &detail.Remaining
			payload.Required = &detail.Required
		}
		return http.StatusPaymentRequired, payload

	case errors.Is(err, quotadomain.ErrQuotaExceeded):
		payload := errorPayload{
			Type:    "quota_exceeded",
			Message: "quota exceeded for the current window",
		}
		var detail *quotadomain.QuotaExceededError
		if errors.As(err, &detail) {
			payload.Used = &detail.Used
			payload.Limit = &detail.Limit
		}
		return http.StatusTooManyRequests, payload

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}

	case errors.Is(err, outcomedomain.ErrOutcomeLocked):
		return http.StatusConflict, errorPayload{
			Type:    "outcome_locked",
			Message: "outcome is locked and cannot change",
		}

	case errors.Is(err, outcomedomain.ErrEarlyNoResponse):
		return http.StatusConflict, errorPayload{
			Type:    "confirmation_required",
			Message: "no_response within three days of send requires confirmation",
		}

	case errors.Is(err, accountdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "email already registered",
		}

	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, creditdomain.ErrLedgerNotInitialized),
		errors.Is(err, billingdomain.ErrLedgerNotFound),
		errors.Is(err, campaigndomain.ErrCampaignNotFound),
		errors.Is(err, outcomedomain.ErrContactNotFound):
		return true
	}
	return false
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidTier),
		errors.Is(err, accountdomain.ErrInvalidID),
		errors.Is(err, creditdomain.ErrInvalidAccount),
		errors.Is(err, creditdomain.ErrInvalidQuantity),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, creditdomain.ErrUnknownActionKind),
		errors.Is(err, quotadomain.ErrInvalidAccount),
		errors.Is(err, quotadomain.ErrInvalidScope),
		errors.Is(err, quotadomain.ErrInvalidWindow),
		errors.Is(err, quotadomain.ErrInvalidLimit),
		errors.Is(err, prefdomain.ErrInvalidAccount),
		errors.Is(err, prefdomain.ErrInvalidCursor),
		errors.Is(err, prefdomain.ErrUnknownActionType),
		errors.Is(err, outcomedomain.ErrInvalidAccount),
		errors.Is(err, outcomedomain.ErrInvalidContact),
		errors.Is(err, outcomedomain.ErrUnknownOutcome),
		errors.Is(err, campaigndomain.ErrInvalidAccount),
		errors.Is(err, campaigndomain.ErrInvalidName),
		errors.Is(err, campaigndomain.ErrInvalidContact),
		errors.Is(err, campaigndomain.ErrCampaignNotActive),
		errors.Is(err, billingdomain.ErrInvalidAccount),
		errors.Is(err, billingdomain.ErrInvalidEventID),
		errors.Is(err, billingdomain.ErrUnknownEventType),
		errors.Is(err, billingdomain.ErrInvalidTier):
		return true
	}
	return false
}

// classifyErrorForLog buckets handler errors for the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
